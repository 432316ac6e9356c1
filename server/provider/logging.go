package provider

import (
	"context"

	"go.uber.org/zap"
)

// WithLogging returns a Completer that logs each exchange around next.
// Logging never changes the reply or the error, and a panic inside the
// logger is swallowed.
func WithLogging(next Completer, logger *zap.Logger) Completer {
	return &loggingCompleter{next: next, logger: logger}
}

type loggingCompleter struct {
	next   Completer
	logger *zap.Logger
}

func (l *loggingCompleter) Complete(ctx context.Context, prompt *Prompt) (string, error) {
	l.safely(func() {
		l.logger.Debug("Sending prompt",
			zap.Strings("roles", prompt.Roles()),
			zap.Any("messages", prompt.Messages),
		)
	})

	reply, err := l.next.Complete(ctx, prompt)

	l.safely(func() {
		if err != nil {
			l.logger.Warn("Completion failed", zap.Error(err))
			return
		}
		l.logger.Debug("Received reply", zap.String("reply", reply))
	})
	return reply, err
}

func (l *loggingCompleter) safely(log func()) {
	defer func() { _ = recover() }()
	log()
}
