package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirogate/kirogate/pkg/api"
	"github.com/kirogate/kirogate/pkg/observability"
	"github.com/kirogate/kirogate/pkg/provider"
	"github.com/kirogate/kirogate/pkg/storage"
	"github.com/kirogate/kirogate/pkg/transport"
)

// Config holds engine settings.
type Config struct {
	// DefaultModel is applied when the request omits a model.
	DefaultModel string

	// Logger for engine diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Engine orchestrates request processing between the transport layer
// and the upstream provider. It implements transport.MessageCreator.
type Engine struct {
	provider provider.Provider
	usage    storage.UsageStore
	cfg      Config
	logger   *slog.Logger
}

var _ transport.MessageCreator = (*Engine)(nil)

// New creates a new Engine. The provider must not be nil. The usage store
// can be nil to disable accounting.
func New(p provider.Provider, usage storage.UsageStore, cfg Config) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: provider must not be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		provider: p,
		usage:    usage,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// CreateMessage handles one create-message request, streaming or not.
func (e *Engine) CreateMessage(ctx context.Context, req *api.MessagesRequest, w transport.ResponseWriter) error {
	if req.Model == "" {
		if e.cfg.DefaultModel == "" {
			return api.NewInvalidRequestError("model is required")
		}
		req.Model = e.cfg.DefaultModel
	}

	if apiErr := api.ValidateMessagesRequest(req); apiErr != nil {
		return apiErr
	}

	if req.Stream {
		return e.streamMessage(ctx, req, w)
	}
	return e.completeMessage(ctx, req, w)
}

func (e *Engine) completeMessage(ctx context.Context, req *api.MessagesRequest, w transport.ResponseWriter) error {
	start := time.Now()

	msg, err := e.provider.Complete(ctx, req)
	observability.UpstreamLatency.WithLabelValues(req.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.UpstreamRequestsTotal.WithLabelValues(req.Model, "error").Inc()
		e.recordUsage(ctx, req, &usageTally{stopReason: "error"}, false)
		return err
	}
	observability.UpstreamRequestsTotal.WithLabelValues(req.Model, "ok").Inc()

	tally := &usageTally{
		inputTokens:  msg.Usage.InputTokens,
		outputTokens: msg.Usage.OutputTokens,
	}
	if msg.StopReason != nil {
		tally.stopReason = *msg.StopReason
	}
	for _, block := range msg.Content {
		if block.Type == api.ContentBlockTypeToolUse {
			tally.toolCalls++
		}
	}
	e.recordUsage(ctx, req, tally, false)

	return w.WriteMessage(ctx, msg)
}

func (e *Engine) streamMessage(ctx context.Context, req *api.MessagesRequest, w transport.ResponseWriter) error {
	start := time.Now()

	ch, err := e.provider.Stream(ctx, req)
	if err != nil {
		observability.UpstreamRequestsTotal.WithLabelValues(req.Model, "error").Inc()
		return err
	}

	tally := &usageTally{}
	var streamErr error

	for result := range ch {
		tally.observe(result.Event)

		if err := w.WriteEvent(ctx, result.Event); err != nil {
			// Client gone. Drain the channel so the provider goroutine
			// can finish, then report the write failure.
			for range ch {
			}
			streamErr = err
			break
		}
		if writeErr := w.Flush(); writeErr != nil {
			for range ch {
			}
			streamErr = writeErr
			break
		}

		if result.Err != nil {
			// The terminal error event has been delivered; the request
			// itself is handled.
			tally.stopReason = "error"
			streamErr = nil
			observability.UpstreamRequestsTotal.WithLabelValues(req.Model, "error").Inc()
			e.recordUsage(ctx, req, tally, true)
			observability.UpstreamLatency.WithLabelValues(req.Model).Observe(time.Since(start).Seconds())
			return nil
		}
	}

	observability.UpstreamLatency.WithLabelValues(req.Model).Observe(time.Since(start).Seconds())
	if streamErr != nil {
		observability.UpstreamRequestsTotal.WithLabelValues(req.Model, "error").Inc()
		return streamErr
	}
	observability.UpstreamRequestsTotal.WithLabelValues(req.Model, "ok").Inc()

	e.recordUsage(ctx, req, tally, true)
	return nil
}

// recordUsage persists the accounting entry and updates counters.
// Accounting failures never fail the request.
func (e *Engine) recordUsage(ctx context.Context, req *api.MessagesRequest, tally *usageTally, streamed bool) {
	observability.TokensTotal.WithLabelValues(req.Model, "input").Add(float64(tally.inputTokens))
	observability.TokensTotal.WithLabelValues(req.Model, "output").Add(float64(tally.outputTokens))
	if tally.toolCalls > 0 {
		observability.ToolCallsTotal.WithLabelValues(req.Model).Add(float64(tally.toolCalls))
	}

	if e.usage == nil {
		return
	}

	rec := &storage.UsageRecord{
		RequestID:    transport.RequestIDFromContext(ctx),
		Model:        req.Model,
		StopReason:   tally.stopReason,
		Streamed:     streamed,
		InputTokens:  tally.inputTokens,
		OutputTokens: tally.outputTokens,
		ToolCalls:    tally.toolCalls,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.usage.RecordUsage(ctx, rec); err != nil {
		e.logger.Warn("recording usage failed",
			"request_id", rec.RequestID,
			"error", err)
	}
}

// usageTally accumulates accounting data from a stream of events.
type usageTally struct {
	inputTokens  int
	outputTokens int
	toolCalls    int
	stopReason   string
}

func (t *usageTally) observe(ev api.StreamEvent) {
	switch ev.Type {
	case api.EventMessageStart:
		if ev.Message != nil {
			t.inputTokens = ev.Message.Usage.InputTokens
		}
	case api.EventContentBlockStart:
		if ev.ContentBlock != nil && ev.ContentBlock.Type == api.ContentBlockTypeToolUse {
			t.toolCalls++
		}
	case api.EventMessageDelta:
		if delta, ok := ev.Delta.(api.MessageDelta); ok {
			t.stopReason = delta.StopReason
		}
		if ev.Usage != nil {
			t.outputTokens = ev.Usage.OutputTokens
		}
	}
}
