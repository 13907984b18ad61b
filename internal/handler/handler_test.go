package handler

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fluxgen/fluxgen/internal/image"
	"github.com/fluxgen/fluxgen/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	data []byte
	err  error
	got  image.Params
}

func (g *fakeGenerator) Generate(_ context.Context, params image.Params) ([]byte, int64, error) {
	g.got = params
	if g.err != nil {
		return nil, 0, g.err
	}
	if params.Seed != nil {
		return g.data, *params.Seed, nil
	}
	return g.data, 7, nil
}

type upload struct {
	name        string
	contentType string
}

type fakeMirror struct {
	uploads []upload
	err     error
}

func (m *fakeMirror) Upload(_ context.Context, name string, _ []byte, contentType string, _ map[string]string) error {
	if m.err != nil {
		return m.err
	}
	m.uploads = append(m.uploads, upload{name, contentType})
	return nil
}

func testDefaults() Defaults {
	return Defaults{
		Model:  "black-forest-labs/FLUX.1-schnell",
		Width:  1344,
		Height: 768,
		Steps:  4,
		Format: "jpg",
	}
}

func newTestHandler(t *testing.T, gen *fakeGenerator) (*Handler, string) {
	t.Helper()
	dir := t.TempDir()
	h := &Handler{
		generator: gen,
		writer:    &store.DirWriter{Dir: dir},
		defaults:  testDefaults(),
		now:       func() time.Time { return time.Date(2026, 8, 23, 14, 30, 5, 0, time.UTC) },
	}
	return h, dir
}

func ptr(v int64) *int64 { return &v }

func TestHandleWritesImageAndSidecar(t *testing.T) {
	gen := &fakeGenerator{data: []byte("image-bytes")}
	h, dir := newTestHandler(t, gen)

	result, err := h.Handle(context.Background(), Input{Prompt: "a cat", Seed: ptr(42)})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "2026-08-23_14-30-05_a_cat.jpg"), result.ImagePath)

	got, err := os.ReadFile(result.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), got)

	data, err := os.ReadFile(result.MetaPath)
	require.NoError(t, err)
	var meta store.Metadata
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, "a cat", meta.Prompt)
	assert.Equal(t, 1344, meta.Width)
	assert.Equal(t, 768, meta.Height)
	assert.Equal(t, 4, meta.Steps)
	assert.Equal(t, int64(42), meta.Seed)
	assert.Equal(t, "2026-08-23_14-30-05_a_cat.jpg", meta.Filename)
}

func TestHandleSeedPassthrough(t *testing.T) {
	gen := &fakeGenerator{data: []byte("x")}
	h, _ := newTestHandler(t, gen)

	first, err := h.Handle(context.Background(), Input{Prompt: "a cat", Seed: ptr(1234)})
	require.NoError(t, err)
	second, err := h.Handle(context.Background(), Input{Prompt: "a cat", Seed: ptr(1234)})
	require.NoError(t, err)

	assert.Equal(t, int64(1234), first.Meta.Seed)
	assert.Equal(t, first.Meta.Seed, second.Meta.Seed)
	require.NotNil(t, gen.got.Seed)
	assert.Equal(t, int64(1234), *gen.got.Seed)
}

func TestHandleDefaultsApplied(t *testing.T) {
	gen := &fakeGenerator{data: []byte("x")}
	h, _ := newTestHandler(t, gen)

	result, err := h.Handle(context.Background(), Input{Prompt: "a cat"})
	require.NoError(t, err)

	assert.Equal(t, "black-forest-labs/FLUX.1-schnell", gen.got.Model)
	assert.Equal(t, 1344, gen.got.Width)
	assert.Equal(t, int64(7), result.Meta.Seed, "seed resolved by the generator is recorded")
}

func TestHandleGeneratorErrorWritesNothing(t *testing.T) {
	gen := &fakeGenerator{err: &image.APIError{Kind: image.KindAuth, StatusCode: 401}}
	h, dir := newTestHandler(t, gen)

	_, err := h.Handle(context.Background(), Input{Prompt: "a cat"})

	var apiErr *image.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, image.KindAuth, apiErr.Kind)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "no files may exist after a failed generation")
}

func TestHandleValidation(t *testing.T) {
	tests := []struct {
		name  string
		input Input
	}{
		{"empty prompt", Input{Prompt: "   "}},
		{"negative width", Input{Prompt: "a cat", Width: -1}},
		{"negative steps", Input{Prompt: "a cat", Steps: -2}},
		{"bad format", Input{Prompt: "a cat", Format: "webp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{data: []byte("x")}
			h, dir := newTestHandler(t, gen)

			_, err := h.Handle(context.Background(), tt.input)
			assert.Error(t, err)

			entries, readErr := os.ReadDir(dir)
			require.NoError(t, readErr)
			assert.Empty(t, entries)
		})
	}
}

func TestHandleExplicitOutputPath(t *testing.T) {
	gen := &fakeGenerator{data: []byte("x")}
	h, _ := newTestHandler(t, gen)

	target := filepath.Join(t.TempDir(), "picture.jpg")
	result, err := h.Handle(context.Background(), Input{Prompt: "a cat", Output: target})
	require.NoError(t, err)

	assert.Equal(t, target, result.ImagePath)
	assert.Equal(t, "picture.jpg", result.Meta.Filename)
	assert.FileExists(t, target)
}

func TestHandleMirrorsBothFiles(t *testing.T) {
	gen := &fakeGenerator{data: []byte("x")}
	h, _ := newTestHandler(t, gen)
	mirror := &fakeMirror{}
	h.mirror = mirror

	result, err := h.Handle(context.Background(), Input{Prompt: "a cat", Format: "png"})
	require.NoError(t, err)

	require.Len(t, mirror.uploads, 2)
	assert.Equal(t, upload{result.Meta.Filename, "image/png"}, mirror.uploads[0])
	assert.Equal(t, upload{"2026-08-23_14-30-05_a_cat.json", "application/json"}, mirror.uploads[1])
}

func TestHandleMirrorFailureFailsInvocation(t *testing.T) {
	gen := &fakeGenerator{data: []byte("x")}
	h, _ := newTestHandler(t, gen)
	h.mirror = &fakeMirror{err: errors.New("bucket gone")}

	_, err := h.Handle(context.Background(), Input{Prompt: "a cat"})
	assert.ErrorContains(t, err, "bucket gone")
}
