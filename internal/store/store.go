package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/fluxgen/fluxgen/internal/log"
)

// Metadata is the JSON sidecar stored next to every generated image.
// Field names match the sidecar schema documented in the README.
type Metadata struct {
	Prompt    string `json:"prompt"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	Steps     int    `json:"num_inference_steps"`
	Seed      int64  `json:"seed"`
	Model     string `json:"model"`
	Timestamp string `json:"timestamp"`
	Filename  string `json:"filename"`
}

// Record is one generation to persist: the opaque image bytes and the
// sidecar describing them. Path, when set, overrides the derived location.
type Record struct {
	Image []byte
	Meta  Metadata
	Path  string
}

type Writer interface {
	Write(context.Context, Record) (imagePath, metaPath string, err error)
}

// Mirror receives a copy of every stored file. Implementations live in
// this package; the orchestrator only sees the interface.
type Mirror interface {
	Upload(ctx context.Context, name string, data []byte, contentType string, meta map[string]string) error
}

// DirWriter persists records under a single output directory, creating it
// on first use. The image is written before the sidecar so a failure never
// leaves metadata describing an image that does not exist.
type DirWriter struct {
	Dir string
}

func (w *DirWriter) Write(ctx context.Context, rec Record) (string, string, error) {
	imagePath := rec.Path
	if imagePath == "" {
		imagePath = filepath.Join(w.Dir, rec.Meta.Filename)
	}
	metaPath := sidecarPath(imagePath)

	logger := log.FromContextOrDiscard(ctx).WithGroup("store")
	logger.Info("writing image", "path", imagePath)

	if err := os.MkdirAll(filepath.Dir(imagePath), 0o755); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(imagePath, rec.Image, 0o644); err != nil {
		return "", "", err
	}

	data, err := json.MarshalIndent(rec.Meta, "", "  ")
	if err != nil {
		return "", "", err
	}
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return "", "", err
	}

	logger.Info("wrote metadata", "path", metaPath)
	return imagePath, metaPath, nil
}

func sidecarPath(imagePath string) string {
	ext := filepath.Ext(imagePath)
	return strings.TrimSuffix(imagePath, ext) + ".json"
}
