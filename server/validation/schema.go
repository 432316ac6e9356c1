package validation

import (
	"errors"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/teilomillet/parley/server/provider"
)

// TitleRequest is the body of the title suggestion endpoints.
type TitleRequest struct {
	Topic string `json:"topic" validate:"required"`
	Count int    `json:"count" validate:"required,min=1,max=50"`
}

// Tokenizer defines the interface for token counting
type Tokenizer interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// fallbackEncoding is used for models tiktoken does not know, which is
// every non-OpenAI model. Counts are then an approximation.
const fallbackEncoding = "cl100k_base"

// ErrTokenLimit is matched by *TokenLimitError.
var ErrTokenLimit = errors.New("token limit exceeded")

// TokenLimitError reports a prompt larger than the model context.
type TokenLimitError struct {
	Count int
	Max   int
}

func (e *TokenLimitError) Error() string {
	return fmt.Sprintf("total tokens (%d) exceeds max context length (%d)", e.Count, e.Max)
}

func (e *TokenLimitError) Is(target error) bool { return target == ErrTokenLimit }

// TokenCounter counts prompt tokens with tiktoken.
type TokenCounter struct {
	encoding Tokenizer
}

// NewTokenCounter creates a counter for model, falling back to cl100k_base.
// tiktoken may download its BPE ranks on first use, so this can fail offline.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding for model %s: %w", model, err)
		}
	}
	return &TokenCounter{encoding: encoding}, nil
}

// NewTokenCounterWith wraps an existing tokenizer.
func NewTokenCounterWith(t Tokenizer) *TokenCounter {
	return &TokenCounter{encoding: t}
}

// CountTokens counts the tokens of text.
func (tc *TokenCounter) CountTokens(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountPrompt sums the tokens of every message content.
func (tc *TokenCounter) CountPrompt(p *provider.Prompt) int {
	total := 0
	for _, msg := range p.Messages {
		total += tc.CountTokens(msg.Content)
	}
	return total
}

// ValidatePrompt fails when p exceeds maxContextTokens. A non-positive
// limit disables the check.
func (tc *TokenCounter) ValidatePrompt(p *provider.Prompt, maxContextTokens int) error {
	if maxContextTokens <= 0 {
		return nil
	}
	if n := tc.CountPrompt(p); n > maxContextTokens {
		return &TokenLimitError{Count: n, Max: maxContextTokens}
	}
	return nil
}
