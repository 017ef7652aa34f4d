package llm

import (
	"fmt"
	"strings"
)

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatChoice struct {
	Message replyMessage `json:"message"`
	// Some providers answer a non-streaming request with the streaming shape.
	Delta        replyMessage `json:"delta"`
	Text         string       `json:"text"`
	FinishReason string       `json:"finish_reason"`
}

type replyMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

// reply returns the first non-empty content across choices together with the
// finish reason and refusal reported by the provider.
func (r chatResponse) reply() (content, finish, refusal string) {
	for _, choice := range r.Choices {
		if finish == "" {
			finish = strings.TrimSpace(choice.FinishReason)
		}
		if refusal == "" {
			refusal = strings.TrimSpace(firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal))
		}
		if content = firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); content != "" {
			return content, finish, refusal
		}
	}
	return "", finish, refusal
}

// emptyReplyError is a 200 response without usable text. It is retried.
type emptyReplyError struct {
	op      string
	choices int
	finish  string
	refusal string
	snippet string
}

func (e *emptyReplyError) Error() string {
	if e.choices == 0 {
		return fmt.Sprintf("llm %s: no choices in response (response_snippet=%s)", e.op, e.snippet)
	}
	return fmt.Sprintf("llm %s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)", e.op, e.finish, e.refusal, e.snippet)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
