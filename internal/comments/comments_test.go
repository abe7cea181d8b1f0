package comments

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource map[string]string

func (f fakeSource) GetComment(_ context.Context, kind, fqn string) (string, bool, error) {
	if fqn == "Broken" {
		return "", false, errors.New("boom")
	}
	text, ok := f[kind+":"+fqn]
	return text, ok, nil
}

func TestNoop(t *testing.T) {
	text, ok, err := Noop{}.Lookup(context.Background(), KindStruct, "Foo")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, text)
}

func TestStoreProvider(t *testing.T) {
	p := NewStoreProvider(fakeSource{"struct:Foo": "A foo."})
	ctx := context.Background()

	text, ok, err := p.Lookup(ctx, KindStruct, "Foo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A foo.", text)

	_, ok, err = p.Lookup(ctx, KindMethod, "Foo")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = p.Lookup(ctx, KindStruct, "Broken")
	assert.Error(t, err)
}

func TestCachedProvider(t *testing.T) {
	calls := 0
	next := ProviderFunc(func(_ context.Context, kind Kind, fqn string) (string, bool, error) {
		calls++
		switch fqn {
		case "Foo":
			return "A foo.", true, nil
		case "Broken":
			return "", false, errors.New("boom")
		}
		return "", false, nil
	})

	path := filepath.Join(t.TempDir(), "comments.db")
	cache, err := OpenCache(path, next)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		text, ok, err := cache.Lookup(ctx, KindStruct, "Foo")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "A foo.", text)
	}
	assert.Equal(t, 1, calls)

	// absences always reach the wrapped provider
	for i := 0; i < 2; i++ {
		_, ok, err := cache.Lookup(ctx, KindEnum, "Missing")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 3, calls)

	// kinds do not share entries
	_, _, err = cache.Lookup(ctx, KindMethod, "Foo")
	require.NoError(t, err)
	assert.Equal(t, 4, calls)

	// errors are not cached
	_, _, err = cache.Lookup(ctx, KindStruct, "Broken")
	assert.Error(t, err)
	_, _, err = cache.Lookup(ctx, KindStruct, "Broken")
	assert.Error(t, err)
	assert.Equal(t, 6, calls)

	require.NoError(t, cache.Close())

	// persisted across reopen
	reopened, err := OpenCache(path, Noop{})
	require.NoError(t, err)
	defer reopened.Close()
	text, ok, err := reopened.Lookup(ctx, KindStruct, "Foo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A foo.", text)
}

func TestCachedProviderSeesLaterWrites(t *testing.T) {
	stored := map[string]string{}
	next := ProviderFunc(func(_ context.Context, _ Kind, fqn string) (string, bool, error) {
		text, ok := stored[fqn]
		return text, ok, nil
	})
	cache, err := OpenCache(filepath.Join(t.TempDir(), "comments.db"), next)
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()

	_, ok, err := cache.Lookup(ctx, KindStruct, "Widget")
	require.NoError(t, err)
	assert.False(t, ok)

	stored["Widget"] = "First."
	text, ok, err := cache.Lookup(ctx, KindStruct, "Widget")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "First.", text)

	stored["Widget"] = "Second."
	text, _, _ = cache.Lookup(ctx, KindStruct, "Widget")
	assert.Equal(t, "First.", text)

	require.NoError(t, cache.Invalidate(KindStruct, "Widget"))
	text, ok, err = cache.Lookup(ctx, KindStruct, "Widget")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Second.", text)

	assert.NoError(t, cache.Invalidate(KindEnum, "Never"))
}
