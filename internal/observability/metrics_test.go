package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFusionCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewFusionCollector(reg)
	if err != nil {
		t.Fatalf("NewFusionCollector: %v", err)
	}

	c.Discovered(3)
	c.Dropped(DropQuality)
	c.Fused(2)
	c.ObserveStage("fusing", 250*time.Millisecond)
	c.RunFinished("done", time.Unix(1752000000, 0), 0.75)

	if got := testutil.ToFloat64(c.ScenesDiscovered); got != 3 {
		t.Errorf("discovered = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.ScenesDropped.WithLabelValues(DropQuality)); got != 1 {
		t.Errorf("dropped{quality} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ScenesFused); got != 2 {
		t.Errorf("fused = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Runs.WithLabelValues("done")); got != 1 {
		t.Errorf("runs{done} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.LastRunTime); got != 1752000000 {
		t.Errorf("last run = %v", got)
	}
	if got := testutil.ToFloat64(c.ValidFraction); got != 0.75 {
		t.Errorf("valid fraction = %v, want 0.75", got)
	}
	if n := testutil.CollectAndCount(c.StageDurations, "fusion_stage_duration_seconds"); n != 1 {
		t.Errorf("stage duration series = %d, want 1", n)
	}
}

func TestFusionCollector_ReRegisterReturnsExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewFusionCollector(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewFusionCollector(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	first.Fused(1)
	if got := testutil.ToFloat64(second.ScenesFused); got != 1 {
		t.Errorf("second collector should share counters, got %v", got)
	}
}

func TestFusionCollector_NilIsNoop(t *testing.T) {
	var c *FusionCollector
	c.Discovered(1)
	c.Dropped(DropLoad)
	c.Fused(1)
	c.ObserveStage("exporting", time.Second)
	c.RunFinished("aborted", time.Now(), 0)
	if err := c.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err == nil {
		t.Error("nil collector WriteTextfile should error")
	}
}

func TestFusionCollector_WriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewFusionCollector(reg)
	if err != nil {
		t.Fatalf("NewFusionCollector: %v", err)
	}
	c.Dropped(DropNormalize)

	path := filepath.Join(t.TempDir(), "fusion.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `fusion_scenes_dropped_total{reason="normalize"} 1`) {
		t.Errorf("textfile missing dropped counter:\n%s", data)
	}
}
