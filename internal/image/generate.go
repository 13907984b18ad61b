package image

import "context"

// Params describes one text-to-image request. Seed is optional; when nil
// the generator draws one locally so the metadata can still record it.
type Params struct {
	Model  string
	Prompt string
	Width  int
	Height int
	Steps  int
	Seed   *int64
}

// Status is the result of probing the inference endpoint for a model.
type Status struct {
	State   string `json:"status"`
	Message string `json:"message,omitempty"`
}

const (
	StateAvailable = "available"
	StateLimited   = "limit"
	StateError     = "error"
)

type Generator interface {
	Generate(context.Context, Params) ([]byte, int64, error)
}

type Prober interface {
	Probe(context.Context, string) Status
}
