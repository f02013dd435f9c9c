package catalog

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/db"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fsutil"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open selects a catalog implementation by file extension: .geojson and .json
// load a Manifest, .db and .sqlite open the scene Index. The returned closer
// releases the index database and is a no-op for manifests.
func Open(fs fsutil.FileSystem, path string) (Catalog, io.Closer, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".geojson", ".json":
		m, err := LoadManifest(fs, path)
		if err != nil {
			return nil, nil, err
		}
		return m, nopCloser{}, nil

	case ".db", ".sqlite", ".sqlite3":
		if !fs.Exists(path) {
			return nil, nil, fmt.Errorf("scene index %s does not exist", path)
		}
		database, err := db.Open(path)
		if err != nil {
			return nil, nil, err
		}
		if err := database.CheckMigrations(db.Migrations()); err != nil {
			database.Close()
			return nil, nil, err
		}
		return NewIndex(database), database, nil

	default:
		return nil, nil, fmt.Errorf("unsupported catalog %q: want .geojson, .json or .db", path)
	}
}
