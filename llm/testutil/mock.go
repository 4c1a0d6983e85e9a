// Package testutil provides test utilities for the llm package.
// It includes a scripted gateway for exercising agents without a backend.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360studio/semcoach/llm"
)

// MockLLMClient is a thread-safe scripted llm.Gateway.
// It records every request and returns configured responses in order.
//
// Usage:
//
//	// Single response mock
//	mock := &MockLLMClient{
//	    Responses: []*llm.Response{testutil.Text(`{"score": 80}`)},
//	}
//
//	// Fail, fail, succeed (for retry testing)
//	mock := &MockLLMClient{
//	    Errs:      []error{llm.NewTransientError(errDown), llm.NewTransientError(errDown)},
//	    Responses: []*llm.Response{nil, nil, testutil.Text(`{"score": 80}`)},
//	}
//
//	// Route by capability
//	mock := &MockLLMClient{
//	    Handler: func(req llm.Request) (*llm.Response, error) { ... },
//	}
type MockLLMClient struct {
	mu              sync.Mutex
	capturedContext context.Context
	requests        []llm.Request
	callCount       int

	// Handler, when set, answers every call.
	Handler func(req llm.Request) (*llm.Response, error)

	// Err is returned by every call when set (after Handler).
	Err error

	// Errs[i], when non-nil, is returned by call i.
	Errs []error

	// Responses[i] is returned by call i. Calls past the end repeat the
	// last response.
	Responses []*llm.Response
}

// Text builds a response with the given content.
func Text(content string) *llm.Response {
	return &llm.Response{Content: content, Model: "test-model", FinishReason: "stop"}
}

// Complete implements llm.Gateway.
func (m *MockLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.capturedContext = ctx
	m.requests = append(m.requests, req)
	idx := m.callCount
	m.callCount++

	if m.Handler != nil {
		return m.Handler(req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if idx < len(m.Errs) && m.Errs[idx] != nil {
		return nil, m.Errs[idx]
	}
	if len(m.Responses) == 0 {
		return nil, llm.NewTransientError(fmt.Errorf("empty response content from mock"))
	}
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	resp := m.Responses[idx]
	if resp == nil {
		return nil, llm.NewTransientError(fmt.Errorf("no scripted response for call %d", idx+1))
	}
	out := *resp
	return &out, nil
}

// GetCapturedContext returns the last context passed to Complete().
func (m *MockLLMClient) GetCapturedContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturedContext
}

// GetCallCount returns the number of times Complete() was called.
func (m *MockLLMClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// GetRequests returns a copy of every request received, in order.
func (m *MockLLMClient) GetRequests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// Capabilities returns the capability of every request, in order.
func (m *MockLLMClient) Capabilities() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	caps := make([]string, len(m.requests))
	for i, r := range m.requests {
		caps[i] = r.Capability
	}
	return caps
}

// Reset clears recorded calls.
// Useful for reusing the same mock instance across multiple test cases.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.requests = nil
	m.capturedContext = nil
}

var _ llm.Gateway = (*MockLLMClient)(nil)
