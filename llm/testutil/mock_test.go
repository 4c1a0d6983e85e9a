package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/c360studio/semcoach/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockLLMClient_Script(t *testing.T) {
	errDown := errors.New("backend down")
	m := &MockLLMClient{
		Errs:      []error{llm.NewTransientError(errDown)},
		Responses: []*llm.Response{nil, Text("second"), Text("third")},
	}
	ctx := context.Background()

	_, err := m.Complete(ctx, llm.Request{Capability: "analysis"})
	require.Error(t, err)
	assert.True(t, llm.IsTransient(err))

	resp, err := m.Complete(ctx, llm.Request{Capability: "planning"})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Content)

	resp, err = m.Complete(ctx, llm.Request{Capability: "composing"})
	require.NoError(t, err)
	assert.Equal(t, "third", resp.Content)

	// Past the end repeats the last response.
	resp, err = m.Complete(ctx, llm.Request{Capability: "composing"})
	require.NoError(t, err)
	assert.Equal(t, "third", resp.Content)

	assert.Equal(t, 4, m.GetCallCount())
	assert.Equal(t, []string{"analysis", "planning", "composing", "composing"}, m.Capabilities())

	m.Reset()
	assert.Equal(t, 0, m.GetCallCount())
	assert.Empty(t, m.GetRequests())
}

func TestMockLLMClient_Handler(t *testing.T) {
	m := &MockLLMClient{Handler: func(req llm.Request) (*llm.Response, error) {
		return Text(req.Capability), nil
	}}
	resp, err := m.Complete(context.Background(), llm.Request{Capability: "reviewing"})
	require.NoError(t, err)
	assert.Equal(t, "reviewing", resp.Content)
}

func TestMockLLMClient_NoResponses(t *testing.T) {
	m := &MockLLMClient{}
	_, err := m.Complete(context.Background(), llm.Request{})
	assert.True(t, llm.IsTransient(err))
}
