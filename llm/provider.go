package llm

import (
	"net/http"
	"sync"
)

// Provider implements the wire format of one LLM API family.
type Provider interface {
	// Name returns the provider identifier ("openai", "anthropic").
	Name() string

	// BuildURL constructs the completion endpoint from a base URL.
	BuildURL(baseURL string) string

	// SetHeaders adds authentication and provider headers.
	SetHeaders(req *http.Request)

	// BuildRequestBody serializes a completion request. temperature is nil
	// to use the endpoint default.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse extracts the completion from a provider response body.
	ParseResponse(body []byte, model string) (*Response, error)
}

var (
	providerMu sync.RWMutex
	providers  = make(map[string]Provider)
)

// RegisterProvider adds a provider, typically from an init function in the
// providers subpackage.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providers[p.Name()] = p
}

// GetProvider returns a registered provider, or nil.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providers[name]
}
