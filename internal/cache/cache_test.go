package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/donortrace/internal/backend/backendtest"
)

func TestKey(t *testing.T) {
	a := Key("get_bill_details", `{"p_bill_id":1}`)
	b := Key("get_bill_details", `{"p_bill_id":2}`)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Key("get_bill_details", `{"p_bill_id":1}`))
	assert.Contains(t, a, "donortrace:v1:")
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	require.NoError(t, c.Set("k", []byte("v"), 0))

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(v))
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Set("short", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get("short")
	assert.False(t, ok)

	require.NoError(t, c.Clear())
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	require.NoError(t, c.Set(Key("a"), []byte(`{"x":1}`), 0))
	v, ok := c.Get(Key("a"))
	require.True(t, ok)
	assert.JSONEq(t, `{"x":1}`, string(v))

	require.NoError(t, c.Set("expired", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get("expired")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o600))
	require.NoError(t, c.Clear())
	_, ok = c.Get(Key("a"))
	assert.False(t, ok)
	_, err := os.Stat(filepath.Join(dir, "keep.txt"))
	assert.NoError(t, err, "Clear must only remove cache files")

	assert.NoError(t, c.Delete("missing"))
}

func TestDiskCache_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	require.NoError(t, os.WriteFile(c.path("bad"), []byte("{"), 0o600))

	_, ok := c.Get("bad")
	assert.False(t, ok)
	_, err := os.Stat(c.path("bad"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLayeredCache_Promotes(t *testing.T) {
	mem := NewMemoryCache(time.Minute, time.Minute)
	disk := NewDiskCache(t.TempDir(), time.Hour)
	c := NewLayeredCache(mem, disk)

	require.NoError(t, disk.Set("k", []byte("v"), 0))
	_, inMem := mem.Get("k")
	require.False(t, inMem)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(v))

	_, inMem = mem.Get("k")
	assert.True(t, inMem, "disk hit should be promoted to memory")

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCachingCaller(t *testing.T) {
	fake := backendtest.New().
		On("get_bill_details", []map[string]any{{"bill_id": 1, "title": "Solar Act"}}).
		On("search_bills_for_legislator_optimized", []map[string]any{})

	caller := NewCachingCaller(fake, NewMemoryCache(time.Minute, time.Minute), 0, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		raw, err := caller.Call(ctx, "get_bill_details", map[string]any{"p_bill_id": 1})
		require.NoError(t, err)
		var rows []map[string]any
		require.NoError(t, json.Unmarshal(raw, &rows))
		assert.Equal(t, "Solar Act", rows[0]["title"])
	}
	assert.Len(t, fake.CallsTo("get_bill_details"), 1)

	for i := 0; i < 2; i++ {
		_, err := caller.Call(ctx, "search_bills_for_legislator_optimized", map[string]any{})
		require.NoError(t, err)
	}
	assert.Len(t, fake.CallsTo("search_bills_for_legislator_optimized"), 2)
}

func TestCachingCaller_ErrorsNotCached(t *testing.T) {
	fake := backendtest.New().OnError("get_bill_details", errors.New("down"))
	caller := NewCachingCaller(fake, NewMemoryCache(time.Minute, time.Minute), 0, nil, nil)

	for i := 0; i < 2; i++ {
		_, err := caller.Call(context.Background(), "get_bill_details", map[string]any{"p_bill_id": 1})
		require.Error(t, err)
	}
	assert.Len(t, fake.CallsTo("get_bill_details"), 2)
}

type countingEmbedder struct {
	calls [][]string
}

func (e *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls = append(e.calls, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestEmbeddingCache(t *testing.T) {
	inner := &countingEmbedder{}
	c, err := NewEmbeddingCache(inner, 16, nil)
	require.NoError(t, err)

	ctx := context.Background()
	v, err := c.Embed(ctx, []string{"solar", "wind"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{5}, {4}}, v)

	v, err = c.Embed(ctx, []string{"Solar ", "hydro"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{5}, {5}}, v)

	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"hydro"}, inner.calls[1], "cached phrase must not be re-embedded")
	assert.Equal(t, 3, c.Len())
}
