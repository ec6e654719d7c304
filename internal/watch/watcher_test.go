package watch

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) record(files []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, files)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *recorder) last() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batches) == 0 {
		return nil
	}
	return r.batches[len(r.batches)-1]
}

func TestFileWatcher_DetectsWrite(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "spec.json")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(db, []byte("{}"), 0o644))

	rec := &recorder{}
	fw, err := NewFileWatcher([]string{db}, Options{Debounce: 50 * time.Millisecond, Logger: zaptest.NewLogger(t)}, rec.record)
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	defer fw.Stop()

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(db, []byte(`{"services":[]}`), 0o644))

	require.Eventually(t, func() bool { return rec.count() > 0 }, 2*time.Second, 20*time.Millisecond)

	abs, err := filepath.Abs(db)
	require.NoError(t, err)
	assert.Equal(t, []string{abs}, rec.last())
}

func TestFileWatcher_DetectsReplace(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "spec.json")
	require.NoError(t, os.WriteFile(db, []byte("{}"), 0o644))

	rec := &recorder{}
	fw, err := NewFileWatcher([]string{db}, Options{Debounce: 50 * time.Millisecond}, rec.record)
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	defer fw.Stop()

	tmp := filepath.Join(dir, "spec.json.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`{"services":[]}`), 0o644))
	require.NoError(t, os.Rename(tmp, db))

	require.Eventually(t, func() bool { return rec.count() > 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestFileWatcher_StopTwice(t *testing.T) {
	db := filepath.Join(t.TempDir(), "spec.json")
	require.NoError(t, os.WriteFile(db, []byte("{}"), 0o644))

	fw, err := NewFileWatcher([]string{db}, Options{}, func([]string) error { return nil })
	require.NoError(t, err)
	require.NoError(t, fw.Start())

	assert.NoError(t, fw.Stop())
	assert.NoError(t, fw.Stop())
}

func TestNewFileWatcher_Errors(t *testing.T) {
	_, err := NewFileWatcher(nil, Options{}, func([]string) error { return nil })
	assert.Error(t, err)

	_, err = NewFileWatcher([]string{"spec.json"}, Options{}, nil)
	assert.Error(t, err)
}

func TestFileWatcher_Files(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWatcher(
		[]string{filepath.Join(dir, "b.json"), filepath.Join(dir, "a.json")},
		Options{},
		func([]string) error { return nil },
	)
	require.NoError(t, err)
	defer fw.Stop()

	assert.Equal(t, []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")}, fw.Files())
	assert.Len(t, fw.dirs, 1)
}

func TestDebouncer_Coalesces(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(50 * time.Millisecond)
	d.SetCallback(func(files []string) { _ = rec.record(files) })

	d.Add("b")
	d.Add("a")
	d.Add("b")

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, rec.last())
}

func TestDebouncer_Stop(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(30 * time.Millisecond)
	d.SetCallback(func(files []string) { _ = rec.record(files) })

	d.Add("a")
	d.Stop()
	d.Add("b")

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestDebouncer_CallbacksDoNotOverlap(t *testing.T) {
	var (
		active, peak atomic.Int32
		rec          = &recorder{}
	)
	d := NewDebouncer(10 * time.Millisecond)
	d.SetCallback(func(files []string) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		_ = rec.record(files)
		active.Add(-1)
	})
	t.Cleanup(d.Stop)

	d.Add("a")
	time.Sleep(30 * time.Millisecond)
	d.Add("b")

	require.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, []string{"b"}, rec.last())
}
