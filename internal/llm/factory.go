package llm

import (
	"fmt"
	"sync"
)

// Factory memoizes clients by (provider, model, temperature) so every stage
// of a run that asks for the same configuration shares one handle.
type Factory struct {
	apiKey  string
	mu      sync.Mutex
	clients map[string]*Client
}

// NewFactory creates a factory. apiKey may be empty; client creation then
// falls back to environment variables.
func NewFactory(apiKey string) *Factory {
	return &Factory{apiKey: apiKey, clients: make(map[string]*Client)}
}

// Client returns the memoized client for the configuration, creating it on
// first use.
func (f *Factory) Client(provider, model string, temperature float32) (*Client, error) {
	key := fmt.Sprintf("%s|%s|%.3f", provider, model, temperature)

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[key]; ok {
		return c, nil
	}
	c, err := NewClient(provider, model, temperature, f.apiKey)
	if err != nil {
		return nil, err
	}
	f.clients[key] = c
	return c, nil
}

// Size returns the number of memoized clients.
func (f *Factory) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Clear drops all memoized clients.
func (f *Factory) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients = make(map[string]*Client)
}
