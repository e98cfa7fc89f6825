package provider

import (
	"net/http"
	"time"
)

// Spec is the construction input shared by every backend kind.
type Spec struct {
	ID          ID
	Kind        string
	BaseURL     string
	APIKeys     []string
	Model       string
	VisionModel string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	// HTTPClient overrides the transport; tests point it at httptest servers.
	HTTPClient *http.Client

	// In-process runtime only.
	ModelPath   string
	ContextSize int
	Threads     int
}

const defaultMaxTokens = 4096

func (s Spec) maxTokens() int {
	if s.MaxTokens > 0 {
		return s.MaxTokens
	}
	return defaultMaxTokens
}

func (s Spec) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: s.Timeout}
}

func (s Spec) visionModel() string {
	if s.VisionModel != "" {
		return s.VisionModel
	}
	return s.Model
}

// kindFromStatus maps well-known HTTP status codes to failure kinds.
func kindFromStatus(code int) (Kind, bool) {
	switch code {
	case http.StatusTooManyRequests:
		return KindRateLimit, true
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindPermission, true
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout, true
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return KindConnection, true
	}
	return "", false
}
