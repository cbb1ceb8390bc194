package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is the injected completion capability. The chat service depends
// only on this interface so it can be tested with a fake.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
