// Package processing runs prompts through the chat gateway and shapes the replies.
package processing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/parley/config"
	"github.com/teilomillet/parley/converter"
	"github.com/teilomillet/parley/server/metrics"
	"github.com/teilomillet/parley/server/provider"
)

// Processor sends prompts to a Completer. Raw-text replies get the
// configured formatting; structured replies are handed to a converter
// exactly as the model produced them.
type Processor struct {
	completer provider.Completer
	config    *config.ProcessingConfig
	metrics   *metrics.Metrics
}

// NewProcessor creates a processor. Both arguments are required.
func NewProcessor(cfg *config.ProcessingConfig, completer provider.Completer) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("processing config is required")
	}
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	return &Processor{
		completer: completer,
		config:    cfg,
	}, nil
}

// SetMetrics enables parse failure counting.
func (p *Processor) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// Text completes prompt and returns the formatted reply.
func (p *Processor) Text(ctx context.Context, prompt *provider.Prompt) (*Response, error) {
	reply, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return p.formatResponse(reply), nil
}

// Structured completes prompt and converts the reply with conv.
// The prompt should already carry conv's format description.
func Structured[T any](ctx context.Context, p *Processor, prompt *provider.Prompt, conv converter.Converter[T]) (T, error) {
	var zero T
	reply, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		return zero, err
	}

	out, err := conv.Convert(reply)
	if err != nil {
		p.countParseFailure(err)
		return zero, err
	}
	return out, nil
}

func (p *Processor) countParseFailure(err error) {
	if p.metrics == nil {
		return
	}
	shape := "unknown"
	var pe *converter.ParseError
	if errors.As(err, &pe) {
		shape = pe.Shape
	}
	p.metrics.ParseFailures.WithLabelValues(shape).Inc()
}

// formatResponse applies the configured formatting options in order:
// fence cleaning, whitespace trimming, then truncation to MaxLength runes.
func (p *Processor) formatResponse(content string) *Response {
	resp := &Response{}
	if p.config.ResponseFormatting.CleanJSON {
		content = gollm.CleanResponse(content)
	}
	if p.config.ResponseFormatting.TrimWhitespace {
		content = strings.TrimSpace(content)
	}
	if max := p.config.ResponseFormatting.MaxLength; max > 0 {
		if runes := []rune(content); len(runes) > max {
			content = string(runes[:max])
			resp.Truncated = true
		}
	}
	resp.Content = content
	return resp
}
