package link

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/nasdf/quorum/node"
	"github.com/nasdf/quorum/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemory())

	doc, err := node.Build(map[string]any{"title": "hello"})
	require.NoError(t, err)

	uri, err := store.Put(ctx, doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, Scheme))

	again, err := store.Put(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, uri, again)

	computed, err := Compute(doc)
	require.NoError(t, err)
	assert.Equal(t, uri, computed)

	out, err := store.Get(ctx, uri)
	require.NoError(t, err)

	value, err := node.Value(out)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "hello"}, value)
}

func TestGetNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemory())
	other := NewStore(storage.NewMemory())

	doc, err := node.Build(map[string]any{"title": "elsewhere"})
	require.NoError(t, err)

	uri, err := other.Put(ctx, doc)
	require.NoError(t, err)

	_, err = store.Get(ctx, uri)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseURI(t *testing.T) {
	_, err := ParseURI("https://example.com")
	require.Error(t, err)

	_, err = ParseURI("ipfs://not-a-cid")
	require.Error(t, err)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	source := NewStore(storage.NewMemory())

	doc, err := node.Build(map[string]any{"title": "exported"})
	require.NoError(t, err)

	uri, err := source.Put(ctx, doc)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, source.Export(ctx, uri, &buf))

	target := NewStore(storage.NewMemory())
	roots, err := target.Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{uri}, roots)

	has, err := target.Has(ctx, uri)
	require.NoError(t, err)
	assert.True(t, has)
}
