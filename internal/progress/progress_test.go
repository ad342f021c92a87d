package progress

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmyddd/modpack-uploader/internal/testutil"
)

func TestTracker_Counts(t *testing.T) {
	listener := &testutil.MockProgressListener{}
	tr := New(3, listener)

	tr.Start("mods/a.jar")
	tr.Start("mods/b.jar")
	assert.Equal(t, []string{"mods/a.jar", "mods/b.jar"}, tr.Active())

	tr.Done("mods/a.jar")
	assert.Equal(t, 1, tr.Completed())
	assert.Equal(t, []string{"mods/b.jar"}, tr.Active())

	calls, _ := listener.CompleteCalls()
	assert.Zero(t, calls)

	tr.Done("mods/b.jar")
	tr.Start("config/c.toml")
	tr.Done("config/c.toml")

	assert.Equal(t, 3, tr.Completed())
	assert.Empty(t, tr.Active())

	calls, total := listener.CompleteCalls()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, total)
}

func TestTracker_DuplicateNames(t *testing.T) {
	tr := New(2, nil)

	tr.Start("mods/a.jar")
	tr.Start("mods/a.jar")
	tr.Done("mods/a.jar")
	assert.Equal(t, []string{"mods/a.jar"}, tr.Active())

	tr.Done("mods/a.jar")
	assert.Empty(t, tr.Active())
	assert.Equal(t, 2, tr.Completed())
}

func TestTracker_ConcurrentUse(t *testing.T) {
	const n = 64
	listener := &testutil.MockProgressListener{}
	tr := New(n, listener)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Start("file")
			tr.Done("file")
		}()
	}
	wg.Wait()

	assert.Equal(t, n, tr.Completed())
	calls, _ := listener.CompleteCalls()
	assert.Equal(t, 1, calls)
}

func TestTracker_Reporting(t *testing.T) {
	listener := &testutil.MockProgressListener{}
	tr := New(2, listener, WithInterval(5*time.Millisecond))

	tr.Start("mods/a.jar")
	tr.StartReporting(t.Context())

	require.Eventually(t, func() bool {
		return len(listener.Reports()) >= 2
	}, time.Second, time.Millisecond)

	tr.Stop()
	tr.Stop()

	reports := listener.Reports()
	first := reports[0]
	assert.Equal(t, 0, first.Completed)
	assert.Equal(t, 2, first.Total)
	assert.Equal(t, []string{"mods/a.jar"}, first.Active)

	// no reports after Stop returns
	count := len(listener.Reports())
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, listener.Reports(), count)
}

func TestTracker_StopWithoutStart(t *testing.T) {
	tr := New(1, &testutil.MockProgressListener{})
	assert.NotPanics(t, tr.Stop)
}

func TestLogListener(t *testing.T) {
	var buf bytes.Buffer
	l := LogListener{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	l.OnProgress(1, 10, []string{"a", "b", "c", "d"})
	assert.Contains(t, buf.String(), "completed=1")
	assert.Contains(t, buf.String(), `active="a, b, c, ..."`)

	l.OnComplete(10)
	assert.Contains(t, buf.String(), "all uploads finished")

	assert.NotPanics(t, func() { LogListener{}.OnComplete(1) })
}

func TestSummarizeActive(t *testing.T) {
	assert.Equal(t, "", summarizeActive(nil))
	assert.Equal(t, "a, b", summarizeActive([]string{"a", "b"}))
	assert.Equal(t, "a, b, c", summarizeActive([]string{"a", "b", "c"}))
}
