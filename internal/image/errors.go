package image

import "fmt"

type Kind int

const (
	// KindAuth covers 401/403: the token is missing scopes, expired, or wrong.
	KindAuth Kind = iota
	// KindGone covers 404/410: the model endpoint does not exist or was retired.
	KindGone
	// KindRemote covers every other non-2xx status and transport failures.
	KindRemote
)

// APIError is returned for any failed exchange with the inference endpoint.
type APIError struct {
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindAuth:
		return fmt.Sprintf("authentication rejected by inference endpoint (status %d): check that HF_TOKEN is valid and has inference permissions", e.StatusCode)
	case KindGone:
		return fmt.Sprintf("model endpoint not available (status %d): the model may have been renamed or removed from the hosted API", e.StatusCode)
	default:
		if e.Message != "" {
			return fmt.Sprintf("inference endpoint returned status %d: %s", e.StatusCode, e.Message)
		}
		return fmt.Sprintf("inference endpoint returned status %d", e.StatusCode)
	}
}
