package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"

	"github.com/fluxgen/fluxgen/internal/log"
)

const DefaultBaseURL = "https://api-inference.huggingface.co"

// HuggingFaceGenerator calls the hosted inference API once per request.
// There is no retry: a cold model or a rate limit surfaces as an error
// the caller can read.
type HuggingFaceGenerator struct {
	Client  *http.Client
	Token   string
	BaseURL string
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Steps  int   `json:"num_inference_steps"`
	Seed   int64 `json:"seed"`
}

type hfError struct {
	Error string `json:"error"`
}

func (g *HuggingFaceGenerator) baseURL() string {
	if g.BaseURL != "" {
		return g.BaseURL
	}
	return DefaultBaseURL
}

func (g *HuggingFaceGenerator) Generate(ctx context.Context, params Params) ([]byte, int64, error) {
	seed := resolveSeed(params.Seed)

	logger := log.FromContextOrDiscard(ctx).WithGroup("huggingface").With("model", params.Model, "seed", seed)
	logger.Info("generating image", "width", params.Width, "height", params.Height, "steps", params.Steps)

	body, err := json.Marshal(hfRequest{
		Inputs: params.Prompt,
		Parameters: hfParameters{
			Width:  params.Width,
			Height: params.Height,
			Steps:  params.Steps,
			Seed:   seed,
		},
	})
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL()+"/models/"+params.Model, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.Token)

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, 0, &APIError{Kind: KindRemote, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, 0, statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &APIError{Kind: KindRemote, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	logger.Info("received image", "bytes", len(data))
	return data, seed, nil
}

// Probe checks whether a model is currently reachable on the hosted API.
// It never fails hard; the outcome is reported in the returned Status.
func (g *HuggingFaceGenerator) Probe(ctx context.Context, model string) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL()+"/status/"+model, nil)
	if err != nil {
		return Status{State: StateError, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+g.Token)

	resp, err := g.Client.Do(req)
	if err != nil {
		return Status{State: StateError, Message: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Status{State: StateLimited, Message: "rate limited or quota exceeded"}
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return Status{State: StateAvailable}
	default:
		return Status{State: StateError, Message: fmt.Sprintf("status endpoint returned %d", resp.StatusCode)}
	}
}

func statusError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		apiErr.Kind = KindAuth
	case http.StatusNotFound, http.StatusGone:
		apiErr.Kind = KindGone
	default:
		apiErr.Kind = KindRemote
	}

	// The API reports failures as {"error": "..."}; anything else is kept raw.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var remote hfError
		if jsonErr := json.Unmarshal(data, &remote); jsonErr == nil && remote.Error != "" {
			apiErr.Message = remote.Error
		} else {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
	}
	return apiErr
}

func resolveSeed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return rand.Int63n(1 << 32)
}
