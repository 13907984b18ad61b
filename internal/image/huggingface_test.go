package image

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func testParams() Params {
	return Params{
		Model:  "black-forest-labs/FLUX.1-schnell",
		Prompt: "a cat on a mat",
		Width:  1344,
		Height: 768,
		Steps:  4,
		Seed:   ptr(42),
	}
}

func TestGenerateSendsParamsVerbatim(t *testing.T) {
	var got hfRequest
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	g := &HuggingFaceGenerator{Client: srv.Client(), Token: "hf_test", BaseURL: srv.URL}
	data, seed, err := g.Generate(context.Background(), testParams())
	require.NoError(t, err)

	assert.Equal(t, "/models/black-forest-labs/FLUX.1-schnell", path)
	assert.Equal(t, "Bearer hf_test", auth)
	assert.Equal(t, "a cat on a mat", got.Inputs)
	assert.Equal(t, 1344, got.Parameters.Width)
	assert.Equal(t, 768, got.Parameters.Height)
	assert.Equal(t, 4, got.Parameters.Steps)
	assert.Equal(t, int64(42), got.Parameters.Seed)
	assert.Equal(t, int64(42), seed, "a provided seed passes through untouched")
	assert.Equal(t, []byte("image-bytes"), data)
}

func TestGenerateDrawsSeedWhenAbsent(t *testing.T) {
	var got hfRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	params := testParams()
	params.Seed = nil

	g := &HuggingFaceGenerator{Client: srv.Client(), Token: "hf_test", BaseURL: srv.URL}
	_, seed, err := g.Generate(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, seed, got.Parameters.Seed, "the locally drawn seed must be the one sent")
	assert.GreaterOrEqual(t, seed, int64(0))
	assert.Less(t, seed, int64(1)<<32)
}

func TestGenerateStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusNotFound, KindGone},
		{http.StatusGone, KindGone},
		{http.StatusServiceUnavailable, KindRemote},
		{http.StatusTooManyRequests, KindRemote},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		g := &HuggingFaceGenerator{Client: srv.Client(), Token: "hf_test", BaseURL: srv.URL}
		_, _, err := g.Generate(context.Background(), testParams())
		srv.Close()

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr, "status %d", tt.status)
		assert.Equal(t, tt.kind, apiErr.Kind, "status %d", tt.status)
		assert.Equal(t, tt.status, apiErr.StatusCode)
	}
}

func TestGenerateRemoteErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model black-forest-labs/FLUX.1-schnell is currently loading"}`))
	}))
	defer srv.Close()

	g := &HuggingFaceGenerator{Client: srv.Client(), Token: "hf_test", BaseURL: srv.URL}
	_, _, err := g.Generate(context.Background(), testParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "currently loading")
}

func TestProbe(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusOK, StateAvailable},
		{http.StatusTooManyRequests, StateLimited},
		{http.StatusInternalServerError, StateError},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/status/some/model", r.URL.Path)
			w.WriteHeader(tt.status)
		}))

		g := &HuggingFaceGenerator{Client: srv.Client(), Token: "hf_test", BaseURL: srv.URL}
		got := g.Probe(context.Background(), "some/model")
		srv.Close()

		assert.Equal(t, tt.want, got.State)
	}
}

func TestAuthErrorMentionsToken(t *testing.T) {
	err := &APIError{Kind: KindAuth, StatusCode: 401}
	assert.Contains(t, err.Error(), "HF_TOKEN")
}
