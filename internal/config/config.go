package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	DefaultModel  = "black-forest-labs/FLUX.1-schnell"
	DefaultWidth  = 1344
	DefaultHeight = 768
	DefaultSteps  = 4
	DefaultFormat = "jpg"
)

// Error reports a missing or invalid configuration value along with
// what the user should do about it.
type Error struct {
	Name   string
	Remedy string
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration error: %s is not set; %s", e.Name, e.Remedy)
}

// Config holds everything read from the environment. Values not present
// fall back to the defaults above.
type Config struct {
	Token        string
	Model        string
	OutputDir    string
	Addr         string
	MirrorBucket string
	Width        int
	Height       int
	Steps        int
	Format       string
}

// Load reads a local .env file if one exists, then the process
// environment. A missing HF_TOKEN is an error before anything else runs.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Token:        os.Getenv("HF_TOKEN"),
		Model:        DefaultModel,
		OutputDir:    "output",
		Addr:         "localhost:5001",
		MirrorBucket: os.Getenv("FLUXGEN_MIRROR_BUCKET"),
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		Steps:        DefaultSteps,
		Format:       DefaultFormat,
	}

	if cfg.Token == "" {
		return nil, &Error{Name: "HF_TOKEN", Remedy: "set it in the environment or in a .env file next to the binary"}
	}

	if v := os.Getenv("FLUXGEN_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("FLUXGEN_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("FLUXGEN_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("FLUXGEN_FORMAT"); v != "" {
		cfg.Format = v
	}

	if w, err := strconv.Atoi(os.Getenv("FLUXGEN_WIDTH")); err == nil && w > 0 {
		cfg.Width = w
	}
	if h, err := strconv.Atoi(os.Getenv("FLUXGEN_HEIGHT")); err == nil && h > 0 {
		cfg.Height = h
	}
	if s, err := strconv.Atoi(os.Getenv("FLUXGEN_STEPS")); err == nil && s > 0 {
		cfg.Steps = s
	}

	return cfg, nil
}
