package provider_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/parley/server/provider"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	next := provider.CompleterFunc(func(ctx context.Context, p *provider.Prompt) (string, error) {
		return "fine, thanks", nil
	})

	c := provider.WithLogging(next, zap.New(core))
	reply, err := c.Complete(context.Background(), provider.NewChat(provider.System("sys"), provider.User("Hi")))

	require.NoError(t, err)
	assert.Equal(t, "fine, thanks", reply)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Sending prompt", entries[0].Message)
	assert.Equal(t, []interface{}{"system", "user"}, entries[0].ContextMap()["roles"])
	assert.Equal(t, "Received reply", entries[1].Message)
	assert.Equal(t, "fine, thanks", entries[1].ContextMap()["reply"])
}

func TestWithLogging_ErrorUnchanged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	boom := errors.New("boom")
	next := provider.CompleterFunc(func(ctx context.Context, p *provider.Prompt) (string, error) {
		return "", boom
	})

	_, err := provider.WithLogging(next, zap.New(core)).Complete(context.Background(), provider.NewPrompt("hi"))
	assert.Same(t, boom, err)
	assert.Equal(t, 1, logs.FilterMessage("Completion failed").Len())
}

type panicCore struct{ zapcore.Core }

func (panicCore) Enabled(zapcore.Level) bool { return true }

func (c panicCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return ce.AddCore(e, c)
}

func (panicCore) Write(zapcore.Entry, []zapcore.Field) error { panic("logger broke") }

func TestWithLogging_PanicSwallowed(t *testing.T) {
	next := provider.CompleterFunc(func(ctx context.Context, p *provider.Prompt) (string, error) {
		return "still here", nil
	})

	c := provider.WithLogging(next, zap.New(panicCore{zapcore.NewNopCore()}))
	reply, err := c.Complete(context.Background(), provider.NewPrompt("hi"))

	require.NoError(t, err)
	assert.Equal(t, "still here", reply)
}
