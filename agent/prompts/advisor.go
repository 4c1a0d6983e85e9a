package prompts

import "strings"

// AdvisorSystemPrompt returns the system prompt for coaching questions.
func AdvisorSystemPrompt() string {
	return `You are a running coach answering questions from another coach.

- Answer in the language of the question.
- Be concise and practical.
- Rely on the reference excerpts when they are relevant and cite their source in brackets.
- Say so when the excerpts do not cover the question.`
}

// AdvisorUserPrompt returns the user prompt for a question with retrieved excerpts.
func AdvisorUserPrompt(question, excerpts string) string {
	var sb strings.Builder
	if strings.TrimSpace(excerpts) != "" {
		sb.WriteString("## Reference Excerpts\n\n")
		sb.WriteString(excerpts)
		sb.WriteString("\n\n")
	}
	sb.WriteString("## Question\n\n")
	sb.WriteString(question)
	return sb.String()
}
