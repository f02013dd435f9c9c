package db

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching. Output goes
// to out; confirmation prompts read from in.
func RunMigrateCommand(args []string, database *DB, out io.Writer, in io.Reader) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}
	migrationsFS := Migrations()

	switch action := args[0]; action {
	case "up":
		return handleMigrateUp(database, migrationsFS, out)

	case "down":
		return handleMigrateDown(database, migrationsFS, out)

	case "status":
		return handleMigrateStatus(database, migrationsFS, out)

	case "version":
		if len(args) < 2 {
			return fmt.Errorf("usage: scene-index migrate version <version_number>")
		}
		return handleMigrateVersion(database, migrationsFS, args[1], out)

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: scene-index migrate force <version_number>")
		}
		return handleMigrateForce(database, migrationsFS, args[1], out, in)

	case "help":
		PrintMigrateHelp(out)
		return nil

	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action %q", action)
	}
}

func handleMigrateUp(database *DB, migrationsFS fs.FS, out io.Writer) error {
	if err := database.MigrateUp(migrationsFS); err != nil {
		return err
	}
	version, dirty, _ := database.MigrateVersion(migrationsFS)
	fmt.Fprintln(out, "✓ All migrations applied successfully")
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func handleMigrateDown(database *DB, migrationsFS fs.FS, out io.Writer) error {
	if err := database.MigrateDown(migrationsFS); err != nil {
		return err
	}
	version, dirty, _ := database.MigrateVersion(migrationsFS)
	fmt.Fprintln(out, "✓ Migration rolled back successfully")
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func handleMigrateStatus(database *DB, migrationsFS fs.FS, out io.Writer) error {
	status, err := database.GetMigrationStatus(migrationsFS)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", status.CurrentVersion)
	fmt.Fprintf(out, "Latest version: %d\n", status.LatestVersion)
	fmt.Fprintf(out, "Dirty: %v\n", status.Dirty)
	fmt.Fprintf(out, "Schema migrations table exists: %v\n", status.SchemaMigrationsExists)

	if status.Dirty {
		fmt.Fprintln(out, "\n⚠️  WARNING: Database is in a dirty state!")
		fmt.Fprintln(out, "A migration failed mid-execution. Inspect the database, then run:")
		fmt.Fprintln(out, "  scene-index migrate force <version>")
	} else if status.Pending() {
		fmt.Fprintf(out, "\n%d migration(s) pending; run: scene-index migrate up\n", status.LatestVersion-status.CurrentVersion)
	}
	return nil
}

func handleMigrateVersion(database *DB, migrationsFS fs.FS, versionStr string, out io.Writer) error {
	var targetVersion uint
	if _, err := fmt.Sscanf(versionStr, "%d", &targetVersion); err != nil {
		return fmt.Errorf("invalid version number: %s", versionStr)
	}
	if err := database.MigrateTo(migrationsFS, targetVersion); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Migrated to version %d successfully\n", targetVersion)
	return nil
}

// handleMigrateForce forces the migration version (recovery only).
func handleMigrateForce(database *DB, migrationsFS fs.FS, versionStr string, out io.Writer, in io.Reader) error {
	var forceVersion int
	if _, err := fmt.Sscanf(versionStr, "%d", &forceVersion); err != nil {
		return fmt.Errorf("invalid version number: %s", versionStr)
	}

	fmt.Fprintf(out, "⚠️  WARNING: Forcing migration version to %d\n", forceVersion)
	fmt.Fprintln(out, "This should only be used to recover from a dirty migration state.")
	fmt.Fprint(out, "Continue? [y/N]: ")

	response, _ := bufio.NewReader(in).ReadString('\n')
	if r := strings.TrimSpace(response); r != "y" && r != "Y" {
		fmt.Fprintln(out, "Aborted")
		return nil
	}

	if err := database.MigrateForce(migrationsFS, forceVersion); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Migration version forced to %d\n", forceVersion)
	return nil
}

// PrintMigrateHelp prints help text for the migrate command.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: scene-index [-db path] migrate <action> [args]

Actions:
  up                 Apply all pending migrations
  down               Roll back the most recent migration
  status             Show current and latest schema versions
  version <n>        Migrate up or down to version n
  force <n>          Force the recorded version (dirty state recovery)
  help               Show this help
`)
}
