package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	OwnerID   *uint     `json:"owner_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func uintPtr(v uint) *uint { return &v }

func TestMemoryCollection_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[widget]()

	w := &widget{Name: "a", Kind: "x", OwnerID: uintPtr(7)}
	require.NoError(t, c.Create(ctx, w))
	assert.Equal(t, uint(1), w.ID)
	assert.False(t, w.CreatedAt.IsZero())

	got, err := c.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
	require.NotNil(t, got.OwnerID)
	assert.Equal(t, uint(7), *got.OwnerID)

	_, err = c.Get(ctx, 99)
	assert.True(t, IsNotFound(err))
}

func TestMemoryCollection_KeepsExplicitCreatedAt(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[widget]()

	past := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	w := &widget{Name: "old", CreatedAt: past}
	require.NoError(t, c.Create(ctx, w))
	assert.True(t, past.Equal(w.CreatedAt))
}

func TestMemoryCollection_Filter(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[widget]()

	require.NoError(t, c.Create(ctx, &widget{Name: "a", Kind: "x", OwnerID: uintPtr(1)}))
	require.NoError(t, c.Create(ctx, &widget{Name: "b", Kind: "y"}))
	require.NoError(t, c.Create(ctx, &widget{Name: "c", Kind: "x", OwnerID: uintPtr(2)}))

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"by string", Filter{"kind": "x"}, []string{"a", "c"}},
		{"by uint", Filter{"owner_id": uint(2)}, []string{"c"}},
		{"by nil pointer", Filter{"owner_id": nil}, []string{"b"}},
		{"no match", Filter{"kind": "z"}, nil},
		{"empty filter", nil, []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Filter(ctx, tt.filter, ListOptions{})
			require.NoError(t, err)
			var names []string
			for _, w := range got {
				names = append(names, w.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	total, err := c.Count(ctx, Filter{"kind": "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestMemoryCollection_RangeAndContains(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[widget]()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.Create(ctx, &widget{Name: "Alpha_1", Kind: "x", CreatedAt: base}))
	require.NoError(t, c.Create(ctx, &widget{Name: "beta", Kind: "alpha", CreatedAt: base.AddDate(0, 0, 1)}))
	require.NoError(t, c.Create(ctx, &widget{Name: "gamma", Kind: "x", CreatedAt: base.AddDate(0, 0, 2)}))

	from := base.AddDate(0, 0, 1)
	to := base.AddDate(0, 0, 2)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"from only", Filter{"created_at": TimeRange{From: &from}}, []string{"beta", "gamma"}},
		{"to is exclusive", Filter{"created_at": TimeRange{To: &to}}, []string{"Alpha_1", "beta"}},
		{"closed window", Filter{"created_at": TimeRange{From: &from, To: &to}}, []string{"beta"}},
		{"contains any column", Filter{"q": Contains{Columns: []string{"name", "kind"}, Term: "ALPHA"}}, []string{"Alpha_1", "beta"}},
		{"contains literal underscore", Filter{"q": Contains{Columns: []string{"name"}, Term: "_1"}}, []string{"Alpha_1"}},
		{"blank term ignored", Filter{"q": Contains{Columns: []string{"name"}, Term: "  "}}, []string{"Alpha_1", "beta", "gamma"}},
		{"combined with equality", Filter{"kind": "x", "created_at": TimeRange{From: &from}}, []string{"gamma"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Filter(ctx, tt.filter, ListOptions{})
			require.NoError(t, err)
			var names []string
			for _, w := range got {
				names = append(names, w.Name)
			}
			assert.Equal(t, tt.want, names)

			total, err := c.Count(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), total)
		})
	}
}

func TestMemoryCollection_OrderAndPaging(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCollection[widget]()

	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, c.Create(ctx, &widget{Name: name, CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	got, err := c.List(ctx, ListOptions{Order: "created_at DESC", Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Name)
	assert.Equal(t, "second", got[1].Name)

	got, err = c.List(ctx, ListOptions{Order: "created_at DESC", Offset: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Name)

	got, err = c.List(ctx, ListOptions{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryCollection_Unique(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[widget](WithUnique("name", "kind"))

	require.NoError(t, c.Create(ctx, &widget{Name: "a", Kind: "x"}))
	require.NoError(t, c.Create(ctx, &widget{Name: "a", Kind: "y"}))

	err := c.Create(ctx, &widget{Name: "a", Kind: "x"})
	assert.True(t, IsDuplicate(err))

	_, err = c.Update(ctx, 2, Fields{"kind": "x"})
	assert.True(t, IsDuplicate(err))
}

func TestMemoryCollection_PartialUnique(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[widget](WithPartialUnique(Filter{"status": "open"}, "owner_id", "kind"))

	first := &widget{Name: "a", Kind: "x", OwnerID: uintPtr(1), Status: "open"}
	require.NoError(t, c.Create(ctx, first))
	assert.True(t, IsDuplicate(c.Create(ctx, &widget{Name: "b", Kind: "x", OwnerID: uintPtr(1), Status: "open"})))
	require.NoError(t, c.Create(ctx, &widget{Name: "c", Kind: "y", OwnerID: uintPtr(1), Status: "open"}))
	require.NoError(t, c.Create(ctx, &widget{Name: "d", Kind: "x", OwnerID: uintPtr(1), Status: "closed"}))

	ok, err := c.UpdateIf(ctx, first.ID, Filter{"status": "open"}, Fields{"status": "closed"})
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, c.Create(ctx, &widget{Name: "e", Kind: "x", OwnerID: uintPtr(1), Status: "open"}))
}

func TestMemoryCollection_Update(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCollection[widget](WithClock(func() time.Time { return clock }))

	w := &widget{Name: "a", Status: "pending"}
	require.NoError(t, c.Create(ctx, w))

	clock = clock.Add(time.Minute)
	updated, err := c.Update(ctx, w.ID, Fields{"status": "approved", "owner_id": uintPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, "approved", updated.Status)
	assert.Equal(t, "a", updated.Name)
	require.NotNil(t, updated.OwnerID)
	assert.Equal(t, uint(3), *updated.OwnerID)
	assert.True(t, clock.Equal(updated.UpdatedAt))

	_, err = c.Update(ctx, 42, Fields{"status": "x"})
	assert.True(t, IsNotFound(err))
}

func TestMemoryCollection_UpdateIfIsExclusive(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[widget]()

	w := &widget{Name: "req", Status: "pending"}
	require.NoError(t, c.Create(ctx, w))

	const workers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.UpdateIf(ctx, w.ID, Filter{"status": "pending"}, Fields{"status": "approved"})
			require.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)

	ok, err := c.UpdateIf(ctx, 999, Filter{"status": "pending"}, Fields{"status": "approved"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCollection_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[widget]()

	w := &widget{Name: "a"}
	require.NoError(t, c.Create(ctx, w))
	require.NoError(t, c.Delete(ctx, w.ID))
	assert.True(t, IsNotFound(c.Delete(ctx, w.ID)))
}

func TestMemoryCollection_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewMemoryCollection[widget]()

	_, err := c.Get(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, c.Create(ctx, &widget{}), context.Canceled)
}
