package agent

import (
	"context"
	"fmt"
	"sync"
)

// MockLLMClient provides a controllable implementation of LLMClient for testing.
// Responses and errors are consumed in order; a nil error slot means the
// corresponding response is returned.
type MockLLMClient struct {
	responses     []CompletionResponse
	errors        []error
	requests      []CompletionRequest
	responseIndex int
	errorIndex    int
	mu            sync.Mutex
}

// NewMockLLMClient creates a new mock client with predefined responses.
func NewMockLLMClient(responses []CompletionResponse, errors []error) *MockLLMClient {
	return &MockLLMClient{
		responses: responses,
		errors:    errors,
	}
}

// Complete returns the next predefined response or error.
func (m *MockLLMClient) Complete(_ context.Context, in CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, in)

	if m.errorIndex < len(m.errors) {
		err := m.errors[m.errorIndex]
		m.errorIndex++
		if err != nil {
			return CompletionResponse{}, err
		}
	}

	if m.responseIndex >= len(m.responses) {
		return CompletionResponse{}, fmt.Errorf("mock client: no more responses")
	}

	resp := m.responses[m.responseIndex]
	m.responseIndex++
	return resp, nil
}

// GetModelName returns a fixed mock model name.
func (m *MockLLMClient) GetModelName() string {
	return "mock-model"
}

// Requests returns a copy of all requests seen so far, for assertions.
func (m *MockLLMClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.requests...)
}

// CallCount returns the number of Complete calls made.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
