package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/c360studio/semcoach/agent/prompts"
	"github.com/c360studio/semcoach/llm"
	"github.com/c360studio/semcoach/rag"
)

// Question is the input of the advisor. Context is filled from the
// retrieval service before the call.
type Question struct {
	Text    string
	Context string
}

// Advisor answers free-form coaching questions with retrieved excerpts.
type Advisor struct {
	*Agent[Question, string]
	fetcher rag.Fetcher
	k       int
}

// NewAdvisor creates the question-answering agent. A nil fetcher answers
// without reference material.
func NewAdvisor(gateway llm.Gateway, fetcher rag.Fetcher, k int, opts ...Option) *Advisor {
	a := New(gateway, Spec[Question, string]{
		Name:        RoleAdvisor,
		Temperature: 0.5,
		MaxTokens:   1024,
		FreeText:    true,
		System:      prompts.AdvisorSystemPrompt(),
		Prompt: func(q Question) (string, error) {
			if strings.TrimSpace(q.Text) == "" {
				return "", errors.New("empty question")
			}
			return prompts.AdvisorUserPrompt(q.Text, q.Context), nil
		},
		Parse: func(raw string) (string, error) {
			answer := strings.TrimSpace(raw)
			if answer == "" {
				return "", llm.NewInvalidError(errors.New("empty answer"))
			}
			return answer, nil
		},
	}, opts...)
	return &Advisor{Agent: a, fetcher: fetcher, k: k}
}

// Ask fetches reference context and answers the question. A retrieval
// failure is logged and the question is answered without context.
func (a *Advisor) Ask(ctx context.Context, question string) Result[string] {
	q := Question{Text: question}
	if a.fetcher != nil && strings.TrimSpace(question) != "" {
		excerpts, err := a.fetcher.FetchContext(ctx, question, a.k)
		if err != nil {
			a.logger.Warn("Reference context unavailable", "error", err)
		} else {
			q.Context = excerpts
		}
	}
	return a.Execute(ctx, q)
}
