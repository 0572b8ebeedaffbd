package harvest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvascli/internal/canvas"
)

type fakeHarvester struct {
	harvest func(ctx context.Context, course canvas.Course) ([]ExportRow, int, error)
}

func (f *fakeHarvester) Harvest(ctx context.Context, course canvas.Course) ([]ExportRow, int, error) {
	return f.harvest(ctx, course)
}

type fakeExporter struct {
	mu       sync.Mutex
	exported []int64
	failFor  map[int64]error
}

func (f *fakeExporter) Export(course canvas.Course, rows []ExportRow) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[course.ID]; err != nil {
		return "", err
	}
	f.exported = append(f.exported, course.ID)
	return fmt.Sprintf("/tmp/%d_activity.csv", course.ID), nil
}

func staticFactory(h CourseHarvester) HarvesterFactory {
	return func() CourseHarvester { return h }
}

func TestProcessIsolatesCourseFailures(t *testing.T) {
	harvester := &fakeHarvester{harvest: func(_ context.Context, course canvas.Course) ([]ExportRow, int, error) {
		if course.ID == 2 {
			return nil, 0, fmt.Errorf("student fetch failed")
		}
		return []ExportRow{{StudentID: 1, StudentName: "Ada", Date: "2024-01-01", PageViews: 1}}, 0, nil
	}}

	processor := NewProcessor(staticFactory(harvester), &fakeExporter{}, 3, discardLogger())
	courses := []canvas.Course{{ID: 1}, {ID: 2}, {ID: 3}}
	results := processor.Process(context.Background(), courses)

	require.Len(t, results, 3)
	assert.Equal(t, StateSucceeded, results[0].State)
	assert.Equal(t, StateFailed, results[1].State)
	assert.Error(t, results[1].Err)
	assert.Equal(t, StateSucceeded, results[2].State)
	assert.Equal(t, 1, results[0].Rows)
	assert.NotEmpty(t, results[0].OutputPath)
}

func TestProcessRecordsExportFailures(t *testing.T) {
	harvester := &fakeHarvester{harvest: func(_ context.Context, _ canvas.Course) ([]ExportRow, int, error) {
		return nil, 0, nil
	}}
	exporter := &fakeExporter{failFor: map[int64]error{1: fmt.Errorf("disk full")}}

	processor := NewProcessor(staticFactory(harvester), exporter, 1, discardLogger())
	results := processor.Process(context.Background(), []canvas.Course{{ID: 1}, {ID: 2}})

	assert.Equal(t, StateFailed, results[0].State)
	assert.ErrorContains(t, results[0].Err, "disk full")
	assert.Equal(t, StateSucceeded, results[1].State)
}

func TestProcessBoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int64
	harvester := &fakeHarvester{harvest: func(_ context.Context, _ canvas.Course) ([]ExportRow, int, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil, 0, nil
	}}

	const workers = 2
	processor := NewProcessor(staticFactory(harvester), &fakeExporter{}, workers, discardLogger())

	courses := make([]canvas.Course, 8)
	for i := range courses {
		courses[i] = canvas.Course{ID: int64(i + 1)}
	}
	results := processor.Process(context.Background(), courses)

	assert.LessOrEqual(t, peak.Load(), int64(workers))
	for _, result := range results {
		assert.Equal(t, StateSucceeded, result.State)
	}
}

func TestProcessAllCoursesReachTerminalState(t *testing.T) {
	harvester := &fakeHarvester{harvest: func(_ context.Context, course canvas.Course) ([]ExportRow, int, error) {
		if course.ID%2 == 0 {
			return nil, 0, fmt.Errorf("boom")
		}
		return nil, 1, nil
	}}

	processor := NewProcessor(staticFactory(harvester), &fakeExporter{}, 0, discardLogger())

	courses := make([]canvas.Course, 10)
	for i := range courses {
		courses[i] = canvas.Course{ID: int64(i + 1)}
	}
	results := processor.Process(context.Background(), courses)

	require.Len(t, results, len(courses))
	for i, result := range results {
		assert.Equal(t, courses[i].ID, result.Course.ID)
		assert.Contains(t, []State{StateSucceeded, StateFailed}, result.State)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "succeeded", StateSucceeded.String())
	assert.Equal(t, "failed", StateFailed.String())
}
