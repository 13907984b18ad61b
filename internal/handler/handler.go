package handler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fluxgen/fluxgen/internal/image"
	"github.com/fluxgen/fluxgen/internal/log"
	"github.com/fluxgen/fluxgen/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
)

// Input carries one generation request from either front-end. Zero-valued
// numeric fields mean "use the configured default"; a nil Seed means "draw
// one locally and record it".
type Input struct {
	Prompt string
	Model  string
	Width  int
	Height int
	Steps  int
	Seed   *int64
	Format string
	Output string
}

// Result reports where a generation landed and what the sidecar says.
type Result struct {
	ImagePath string
	MetaPath  string
	Meta      store.Metadata
}

type Defaults struct {
	Model  string
	Width  int
	Height int
	Steps  int
	Format string
}

type Handler struct {
	generator image.Generator
	writer    store.Writer
	mirror    store.Mirror
	defaults  Defaults
	now       func() time.Time
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return &Handler{
		generator: do.MustInvoke[image.Generator](i),
		writer:    do.MustInvoke[store.Writer](i),
		mirror:    do.MustInvoke[store.Mirror](i),
		defaults:  do.MustInvoke[Defaults](i),
		now:       time.Now,
	}, nil
}

func (h *Handler) Handle(ctx context.Context, input Input) (*Result, error) {
	input = h.applyDefaults(input)
	if err := validate(input); err != nil {
		return nil, err
	}

	logger := log.FromContextOrDiscard(ctx).WithGroup("handler").With("model", input.Model)
	logger.Info("handling generation", "prompt", input.Prompt)

	data, seed, err := h.generator.Generate(ctx, image.Params{
		Model:  input.Model,
		Prompt: input.Prompt,
		Width:  input.Width,
		Height: input.Height,
		Steps:  input.Steps,
		Seed:   input.Seed,
	})
	if err != nil {
		return nil, err
	}

	now := h.now()
	name := store.Filename(now, input.Prompt, input.Format)
	if input.Output != "" {
		name = filepath.Base(input.Output)
	}

	meta := store.Metadata{
		Prompt:    input.Prompt,
		Width:     input.Width,
		Height:    input.Height,
		Format:    input.Format,
		Steps:     input.Steps,
		Seed:      seed,
		Model:     input.Model,
		Timestamp: now.Format(time.RFC3339),
		Filename:  name,
	}

	imagePath, metaPath, err := h.writer.Write(ctx, store.Record{
		Image: data,
		Meta:  meta,
		Path:  input.Output,
	})
	if err != nil {
		return nil, err
	}

	if h.mirror != nil {
		if err := h.mirrorRecord(ctx, meta, data, metaPath); err != nil {
			return nil, err
		}
	}

	logger.Info("generation complete", "image", imagePath, "seed", seed)
	return &Result{ImagePath: imagePath, MetaPath: metaPath, Meta: meta}, nil
}

func (h *Handler) mirrorRecord(ctx context.Context, meta store.Metadata, data []byte, metaPath string) error {
	sidecar, err := os.ReadFile(metaPath)
	if err != nil {
		return err
	}
	tags := map[string]string{
		"prompt": meta.Prompt,
		"model":  meta.Model,
		"seed":   fmt.Sprint(meta.Seed),
	}
	contentType := lo.Ternary(meta.Format == "png", "image/png", "image/jpeg")
	if err := h.mirror.Upload(ctx, meta.Filename, data, contentType, tags); err != nil {
		return err
	}
	return h.mirror.Upload(ctx, filepath.Base(metaPath), sidecar, "application/json", tags)
}

func (h *Handler) applyDefaults(input Input) Input {
	input.Model = lo.Ternary(input.Model != "", input.Model, h.defaults.Model)
	input.Width = lo.Ternary(input.Width != 0, input.Width, h.defaults.Width)
	input.Height = lo.Ternary(input.Height != 0, input.Height, h.defaults.Height)
	input.Steps = lo.Ternary(input.Steps != 0, input.Steps, h.defaults.Steps)
	input.Format = lo.Ternary(input.Format != "", input.Format, h.defaults.Format)
	return input
}

// Width and height only need to be positive here; the multiple-of-32
// convention is enforced by the remote API.
func validate(input Input) error {
	if strings.TrimSpace(input.Prompt) == "" {
		return fmt.Errorf("prompt must not be empty")
	}
	if input.Width <= 0 || input.Height <= 0 {
		return fmt.Errorf("width and height must be positive, got %dx%d", input.Width, input.Height)
	}
	if input.Steps <= 0 {
		return fmt.Errorf("inference steps must be positive, got %d", input.Steps)
	}
	if input.Format != "jpg" && input.Format != "png" {
		return fmt.Errorf("format must be jpg or png, got %q", input.Format)
	}
	return nil
}
