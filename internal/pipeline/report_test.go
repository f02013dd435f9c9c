package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fusion"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
)

func TestReportSummary(t *testing.T) {
	tests := []struct {
		name string
		rep  Report
		want string
	}{
		{
			name: "clean run",
			rep:  Report{State: StateDone, Policy: fusion.PolicyMean, Discovered: 2, Fused: 2},
			want: "2 scenes discovered\n2 scenes fused (mean)",
		},
		{
			name: "one quality drop",
			rep:  Report{State: StateDone, Policy: fusion.PolicyRecency, Discovered: 3, DroppedQuality: 1, Fused: 2},
			want: "3 scenes discovered\n1 scene dropped by quality filter\n2 scenes fused (recency-gap-fill)",
		},
		{
			name: "every drop reason",
			rep: Report{State: StateDone, Policy: fusion.PolicyMean, Discovered: 7,
				DroppedQuality: 2, DroppedLoad: 1, DroppedNormalize: 3, Fused: 1},
			want: "7 scenes discovered\n2 scenes dropped by quality filter\n1 scene dropped by load failure\n" +
				"3 scenes dropped by normalization failure\n1 scene fused (mean)",
		},
		{
			name: "aborted",
			rep: Report{State: StateAborted, Policy: fusion.PolicyMean, Discovered: 0,
				Err: &EmptyInputError{Cause: CauseNoScenesDiscovered}},
			want: "0 scenes discovered\n0 scenes fused\nrun aborted: no grids to fuse: no scenes discovered",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rep.Summary())
		})
	}
}

func TestReportDropCounts(t *testing.T) {
	var r Report
	r.drop(Dropped{SceneID: "a", Sensor: scene.ECOSTRESS, Reason: DropQuality})
	r.drop(Dropped{SceneID: "b", Sensor: scene.MODIS, Reason: DropLoad})
	r.drop(Dropped{SceneID: "c", Sensor: scene.MODIS, Reason: DropLoad})

	assert.Equal(t, 1, r.DroppedQuality)
	assert.Equal(t, 2, r.DroppedLoad)
	assert.Zero(t, r.DroppedNormalize)
	assert.Len(t, r.Drops, 3)
}

func TestReportDuration(t *testing.T) {
	start := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	r := Report{Started: start, Finished: start.Add(90 * time.Second)}
	assert.Equal(t, 90*time.Second, r.Duration())
}

func TestEmptyCause(t *testing.T) {
	tests := []struct {
		rep  Report
		want EmptyCause
	}{
		{Report{}, CauseNoScenesDiscovered},
		{Report{Discovered: 2, DroppedQuality: 2}, CauseAllDroppedByQuality},
		{Report{Discovered: 2, DroppedLoad: 2}, CauseAllFailedLoad},
		{Report{Discovered: 1, DroppedNormalize: 1}, CauseAllFailedNormalization},
		{Report{Discovered: 3, DroppedQuality: 1, DroppedLoad: 2}, CauseNoSurvivors},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, emptyCause(&tt.rep))
		})
	}
}

func TestEmptyInputErrorUnwraps(t *testing.T) {
	var err error = &EmptyInputError{Cause: CauseAllDroppedByQuality, Discovered: 4}
	assert.ErrorIs(t, err, fusion.ErrEmptyInput)

	var empty *EmptyInputError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, 4, empty.Discovered)
}
