package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewTracerProvider returns a provider that writes every ended span to
// logger at debug level. A nil logger uses slog.Default at the time each
// span ends.
func NewTracerProvider(logger *slog.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(&spanLogProcessor{logger: logger}))
}

type spanLogProcessor struct {
	logger *slog.Logger
}

func (p *spanLogProcessor) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}

func (p *spanLogProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *spanLogProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	logger := p.log()
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	args := []any{
		"span", span.Name(),
		"duration", span.EndTime().Sub(span.StartTime()),
	}
	for _, kv := range span.Attributes() {
		args = append(args, string(kv.Key), kv.Value.Emit())
	}

	status := span.Status()
	if status.Code == codes.Error {
		logger.Debug("Span failed.", append(args, "err", status.Description)...)
		return
	}
	logger.Debug("Span ended.", args...)
}

func (p *spanLogProcessor) Shutdown(context.Context) error {
	return nil
}

func (p *spanLogProcessor) ForceFlush(context.Context) error {
	return nil
}
