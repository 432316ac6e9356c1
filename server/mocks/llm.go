// Package mocks provides test doubles for the chat client and config watcher.
package mocks

import (
	"context"
	"sync"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
	"github.com/teilomillet/gollm/utils"
)

// MockLLM implements gollm.LLM without network access. It records every
// prompt it receives so tests can assert on message order and content.
//
//	mockLLM := mocks.NewMockLLM(func(ctx context.Context, p *gollm.Prompt) (string, error) {
//	    return "A, B, C", nil
//	})
type MockLLM struct {
	GenerateFunc func(context.Context, *gollm.Prompt) (string, error)
	Provider     string
	Model        string

	mu      sync.Mutex
	prompts []*gollm.Prompt
	options map[string]interface{}
}

// NewMockLLM creates a MockLLM. A nil generateFunc makes Generate return "".
func NewMockLLM(generateFunc func(context.Context, *gollm.Prompt) (string, error)) *MockLLM {
	return &MockLLM{
		GenerateFunc: generateFunc,
		Provider:     "mock",
		Model:        "mock-model",
		options:      make(map[string]interface{}),
	}
}

// NewStaticLLM returns a MockLLM that always answers reply.
func NewStaticLLM(reply string) *MockLLM {
	return NewMockLLM(func(context.Context, *gollm.Prompt) (string, error) {
		return reply, nil
	})
}

// Generate records the prompt and delegates to GenerateFunc.
func (m *MockLLM) Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "", nil
}

// Prompts returns the prompts received so far, oldest first.
func (m *MockLLM) Prompts() []*gollm.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*gollm.Prompt, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// LastPrompt returns the most recent prompt or nil.
func (m *MockLLM) LastPrompt() *gollm.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return nil
	}
	return m.prompts[len(m.prompts)-1]
}

// Option returns a value stored with SetOption.
func (m *MockLLM) Option(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.options[key]
	return v, ok
}

func (m *MockLLM) Debug(format string, args ...interface{}) {}

func (m *MockLLM) GetPromptJSONSchema(opts ...gollm.SchemaOption) ([]byte, error) {
	return []byte(`{}`), nil
}

func (m *MockLLM) GetProvider() string { return m.Provider }

func (m *MockLLM) GetModel() string { return m.Model }

func (m *MockLLM) GetLogLevel() gollm.LogLevel { return gollm.LogLevelInfo }

func (m *MockLLM) UpdateLogLevel(level gollm.LogLevel) {}

func (m *MockLLM) SetLogLevel(level gollm.LogLevel) {}

func (m *MockLLM) GetLogger() utils.Logger { return nil }

func (m *MockLLM) NewPrompt(text string) *gollm.Prompt {
	return &gollm.Prompt{
		Messages: []gollm.PromptMessage{
			{Role: "user", Content: text},
		},
	}
}

func (m *MockLLM) SetEndpoint(endpoint string) {}

// SetOption records the option for later inspection.
func (m *MockLLM) SetOption(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.options == nil {
		m.options = make(map[string]interface{})
	}
	m.options[key] = value
}

func (m *MockLLM) SupportsJSONSchema() bool { return true }

// GenerateWithSchema ignores the schema and behaves like Generate.
func (m *MockLLM) GenerateWithSchema(ctx context.Context, prompt *gollm.Prompt, schema interface{}, opts ...llm.GenerateOption) (string, error) {
	return m.Generate(ctx, prompt, opts...)
}

func (m *MockLLM) SetOllamaEndpoint(endpoint string) error { return nil }

func (m *MockLLM) SetSystemPrompt(prompt string, cacheType llm.CacheType) {}
