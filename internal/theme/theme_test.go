package theme

import (
	"context"
	"errors"
	"testing"

	"devguru-client/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDoc struct {
	attr  string
	glyph string
	title string
}

func (d *fakeDoc) SetThemeAttribute(v string)      { d.attr = v }
func (d *fakeDoc) SetToggleButton(glyph, t string) { d.glyph, d.title = glyph, t }

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store down")
}
func (brokenStore) Set(context.Context, string, string) error { return errors.New("store down") }

func TestLoadDefaults(t *testing.T) {
	doc := &fakeDoc{}
	s := NewSwitcher(storage.NewMemory(), doc, nil)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Light, got)
	assert.Equal(t, "light", doc.attr)
	assert.Equal(t, "🌙", doc.glyph)
	assert.Equal(t, "Включить темную тему", doc.title)
}

func TestLoadStored(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, StorageKey, "dark"))

	doc := &fakeDoc{}
	got, err := NewSwitcher(kv, doc, nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Dark, got)
	assert.Equal(t, "dark", doc.attr)
	assert.Equal(t, "☀️", doc.glyph)
	assert.Equal(t, "Включить светлую тему", doc.title)
}

func TestLoadUnknownFallsBack(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, StorageKey, "sepia"))

	doc := &fakeDoc{}
	got, err := NewSwitcher(kv, doc, nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Light, got)
	assert.Equal(t, "light", doc.attr)
}

func TestDoubleToggleRestores(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	doc := &fakeDoc{}
	s := NewSwitcher(kv, doc, nil)
	_, err := s.Load(ctx)
	require.NoError(t, err)

	got, err := s.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, Dark, got)
	assert.Equal(t, "dark", doc.attr)
	v, _, _ := kv.Get(ctx, StorageKey)
	assert.Equal(t, "dark", v)

	got, err = s.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, Light, got)
	assert.Equal(t, "light", doc.attr)
	assert.Equal(t, "🌙", doc.glyph)
	v, _, _ = kv.Get(ctx, StorageKey)
	assert.Equal(t, "light", v)
}

func TestStoreFailures(t *testing.T) {
	ctx := context.Background()
	doc := &fakeDoc{}
	s := NewSwitcher(brokenStore{}, doc, nil)

	got, err := s.Load(ctx)
	assert.Error(t, err)
	assert.Equal(t, Light, got)
	assert.Equal(t, "light", doc.attr)

	got, err = s.Toggle(ctx)
	assert.Error(t, err)
	assert.Equal(t, Dark, got)
	assert.Equal(t, "dark", doc.attr)
}

func TestParse(t *testing.T) {
	assert.Equal(t, Dark, Parse("dark"))
	assert.Equal(t, Light, Parse("light"))
	assert.Equal(t, Light, Parse(""))
	assert.Equal(t, Light, Parse("DARK"))
}
