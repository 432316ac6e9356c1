package provider

import "github.com/teilomillet/gollm"

// Message roles understood by chat models.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt is an ordered message sequence. Order is sent to the model as built.
type Prompt struct {
	Messages []Message `json:"messages"`
}

// NewPrompt returns a prompt holding a single user message.
func NewPrompt(text string) *Prompt {
	return &Prompt{Messages: []Message{User(text)}}
}

// NewChat returns a prompt holding msgs in the given order.
func NewChat(msgs ...Message) *Prompt {
	return &Prompt{Messages: msgs}
}

// System builds a system message.
func System(text string) Message { return Message{Role: RoleSystem, Content: text} }

// User builds a user message.
func User(text string) Message { return Message{Role: RoleUser, Content: text} }

// Roles returns the role sequence, e.g. ["system", "user"].
func (p *Prompt) Roles() []string {
	roles := make([]string, len(p.Messages))
	for i, m := range p.Messages {
		roles[i] = m.Role
	}
	return roles
}

// toGollm converts p into the client's prompt type, keeping order.
func (p *Prompt) toGollm() *gollm.Prompt {
	out := &gollm.Prompt{Messages: make([]gollm.PromptMessage, len(p.Messages))}
	for i, m := range p.Messages {
		out.Messages[i] = gollm.PromptMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
