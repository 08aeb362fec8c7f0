package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pantry.app/internal/db"
)

func TestExecutePopsJob(t *testing.T) {
	q := New(nil)
	defer q.Close()

	q.Add("job-1", []db.Task{{Name: "a"}, {Name: "b"}}, time.Minute)

	var consumed int
	res, ok := q.Execute("job-1", func(tasks []db.Task) db.Result {
		consumed = len(tasks)
		return db.Result{StatusCode: 200}
	})
	require.True(t, ok)
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, 2, consumed)

	// A second execute finds nothing.
	_, ok = q.Execute("job-1", func([]db.Task) db.Result { return db.Result{} })
	require.False(t, ok)
}

func TestExecuteUnknownJob(t *testing.T) {
	q := New(nil)
	defer q.Close()

	_, ok := q.Execute("ghost", func([]db.Task) db.Result { return db.Result{} })
	require.False(t, ok)
}

func TestSweeperEvictsExpiredJobs(t *testing.T) {
	q := New(nil)
	q.interval = 5 * time.Millisecond
	defer q.Close()

	q.Add("stale", []db.Task{{Name: "a"}}, 10*time.Millisecond)

	require.Eventually(t, func() bool { return q.Len() == 0 },
		time.Second, 5*time.Millisecond)

	_, ok := q.Execute("stale", func([]db.Task) db.Result { return db.Result{} })
	require.False(t, ok)
}

func TestSweeperSleepsWhenEmptyAndWakesOnInsert(t *testing.T) {
	q := New(nil)
	q.interval = 5 * time.Millisecond
	defer q.Close()

	q.Add("first", []db.Task{{Name: "a"}}, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return !q.running
	}, time.Second, 5*time.Millisecond)

	// Waking up again after draining works.
	q.Add("second", []db.Task{{Name: "b"}}, 10*time.Millisecond)
	q.mu.Lock()
	running := q.running
	q.mu.Unlock()
	require.True(t, running)

	require.Eventually(t, func() bool { return q.Len() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestCloseThenAddRestartsSweeper(t *testing.T) {
	// An Add racing a Close must hand the new sweeper its own stop channel,
	// not the one Close already closed, or eviction silently dies.
	q := New(nil)
	q.interval = 5 * time.Millisecond
	defer q.Close()

	for i := 0; i < 50; i++ {
		q.Add("job", []db.Task{{Name: "a"}}, 10*time.Millisecond)
		q.Close()
	}

	q.Add("late", []db.Task{{Name: "b"}}, 10*time.Millisecond)
	require.Eventually(t, func() bool { return q.Len() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestFreshEntryOutlivesSweep(t *testing.T) {
	q := New(nil)
	q.interval = 5 * time.Millisecond
	defer q.Close()

	q.Add("keep", []db.Task{{Name: "a"}}, time.Minute)
	time.Sleep(30 * time.Millisecond)

	_, ok := q.Execute("keep", func([]db.Task) db.Result { return db.Result{StatusCode: 200} })
	require.True(t, ok)
}
