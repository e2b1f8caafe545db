package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_StartGetClose(t *testing.T) {
	tr := NewTracker()

	s := tr.Start("u1", "A", 9)
	assert.Equal(t, 0, s.Page)
	assert.Equal(t, 9, s.PageSize)

	got, ok := tr.Get("u1", "A")
	require.True(t, ok)
	assert.Equal(t, s.Key, got.Key)

	assert.True(t, tr.Close("u1", "A"))
	assert.False(t, tr.Close("u1", "A"))
	_, ok = tr.Get("u1", "A")
	assert.False(t, ok)
}

func TestTracker_StartResets(t *testing.T) {
	tr := NewTracker()
	s := tr.Start("u1", "A", 9)
	s.Page = 3
	tr.Save(s)

	s = tr.Start("u1", "A", 4)
	assert.Equal(t, 0, s.Page)
	assert.Equal(t, 4, s.PageSize)
}

func TestTracker_KeysAreIndependent(t *testing.T) {
	tr := NewTracker()
	a := tr.Start("u1", "A", 9)
	tr.Start("u1", "B", 9)
	tr.Start("u2", "A", 4)

	a.Page = 2
	tr.Save(a)

	b, _ := tr.Get("u1", "B")
	other, _ := tr.Get("u2", "A")
	assert.Equal(t, 0, b.Page)
	assert.Equal(t, 0, other.Page)
	assert.Equal(t, 4, other.PageSize)

	tr.Close("u1", "A")
	assert.Equal(t, 2, tr.Len())
}

func TestTracker_EvictIdle(t *testing.T) {
	tr := NewTracker()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	tr.Start("old", "A", 9)
	now = now.Add(20 * time.Minute)
	tr.Start("fresh", "A", 9)

	removed := tr.EvictIdle(10 * time.Minute)
	assert.Equal(t, 1, removed)
	_, ok := tr.Get("fresh", "A")
	assert.True(t, ok)
	_, ok = tr.Get("old", "A")
	assert.False(t, ok)
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			viewer := string(rune('a' + i%26))
			s := tr.Start(viewer, "A", 9)
			s.Page = i
			tr.Save(s)
			tr.Get(viewer, "A")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 26, tr.Len())
}
