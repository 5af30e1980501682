package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(id string, started time.Time) *Record {
	return &Record{
		ID:         id,
		JavaPath:   "/opt/jre/bin/java",
		Args:       []string{"@args.txt"},
		Dir:        "/games/melody",
		ExitStatus: 1,
		Stdout:     "hello\n",
		Stderr:     "Error: Could not find or load main class\n",
		StartedAt:  started,
		DurationMS: 1250,
	}
}

// countingStore records how often the backing store is hit.
type countingStore struct {
	recs  map[string]*Record
	loads int
	fail  error
}

func newCountingStore() *countingStore {
	return &countingStore{recs: map[string]*Record{}}
}

func (c *countingStore) Save(rec *Record) error {
	if c.fail != nil {
		return c.fail
	}
	c.recs[rec.ID] = rec
	return nil
}

func (c *countingStore) Load(id string) (*Record, error) {
	c.loads++
	if rec, ok := c.recs[id]; ok {
		return rec, nil
	}
	return nil, ErrNotFound
}

func TestDiskStore_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	s := NewDiskStore(dir)
	started := time.UnixMilli(1760870400000)

	require.NoError(t, s.Save(sampleRecord("a1", started)))

	got, err := s.Load("a1")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", got.Stdout)
	assert.Equal(t, []string{"@args.txt"}, got.Args)
	assert.True(t, got.StartedAt.Equal(started))
	assert.FileExists(t, filepath.Join(dir, "a1.json"))
}

func TestDiskStore_LazyTempDir(t *testing.T) {
	s := NewDiskStore("")
	dir, err := s.Dir()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	assert.DirExists(t, dir)
}

func TestDiskStore_NotFound(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	_, err := s.Load("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Load("../escape")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLRUStore_ServesFromMemory(t *testing.T) {
	back := newCountingStore()
	s := NewLRUStore(2, back)

	require.NoError(t, s.Save(sampleRecord("a", time.Now())))
	_, err := s.Load("a")
	require.NoError(t, err)
	assert.Equal(t, 0, back.loads)
}

func TestLRUStore_Evicts(t *testing.T) {
	back := newCountingStore()
	s := NewLRUStore(2, back)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save(sampleRecord(id, time.Now())))
	}
	assert.Equal(t, 2, s.Len())

	_, err := s.Load("a")
	require.NoError(t, err)
	assert.Equal(t, 1, back.loads, "evicted record should come from the backing store")

	// "a" was promoted, so "b" is now the oldest.
	_, err = s.Load("c")
	require.NoError(t, err)
	_, err = s.Load("b")
	require.NoError(t, err)
	assert.Equal(t, 2, back.loads)
}

func TestLRUStore_DoesNotCacheFailedSave(t *testing.T) {
	back := newCountingStore()
	back.fail = errors.New("disk full")
	s := NewLRUStore(2, back)

	assert.Error(t, s.Save(sampleRecord("a", time.Now())))
	assert.Equal(t, 0, s.Len())
}

func TestTee(t *testing.T) {
	first, second := newCountingStore(), newCountingStore()
	tee := Tee{first, second}

	require.NoError(t, tee.Save(sampleRecord("a", time.Now())))
	assert.Contains(t, first.recs, "a")
	assert.Contains(t, second.recs, "a")

	delete(first.recs, "a")
	got, err := tee.Load("a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	_, err = tee.Load("zzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTee_SaveJoinsErrors(t *testing.T) {
	bad := newCountingStore()
	bad.fail = errors.New("read-only")
	good := newCountingStore()

	err := Tee{bad, good}.Save(sampleRecord("a", time.Now()))
	assert.ErrorContains(t, err, "read-only")
	assert.Contains(t, good.recs, "a")
}

func TestSQLStore(t *testing.T) {
	s, err := OpenSQL(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	base := time.UnixMilli(1760870400000)
	require.NoError(t, s.Save(sampleRecord("old", base)))
	require.NoError(t, s.Save(sampleRecord("new", base.Add(time.Minute))))

	rec := sampleRecord("trunc", base.Add(-time.Minute))
	rec.Truncated = true
	rec.Args = nil
	require.NoError(t, s.Save(rec))

	got, err := s.Load("trunc")
	require.NoError(t, err)
	assert.True(t, got.Truncated)
	assert.Empty(t, got.Args)
	assert.Equal(t, 1250*time.Millisecond, got.Duration())

	list, err := s.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
	assert.Equal(t, "Error: Could not find or load main class\n", list[0].Stderr)

	_, err = s.Load("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_Upsert(t *testing.T) {
	s, err := OpenSQL(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	rec := sampleRecord("a", time.Now())
	require.NoError(t, s.Save(rec))
	rec.ExitStatus = 0
	require.NoError(t, s.Save(rec))

	got, err := s.Load("a")
	require.NoError(t, err)
	assert.Equal(t, 0, got.ExitStatus)
}

func TestOpenSQL_RequiresPath(t *testing.T) {
	_, err := OpenSQL("  ")
	assert.Error(t, err)
}
