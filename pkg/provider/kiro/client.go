package kiro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirogate/kirogate/pkg/api"
	"github.com/kirogate/kirogate/pkg/provider"
)

const (
	defaultEndpointPath = "/generateAssistantResponse"
	readChunkSize       = 32 * 1024
)

// Config holds the settings for a Kiro client.
type Config struct {
	// BaseURL is the upstream endpoint, without the request path.
	BaseURL string

	// ProfileArn identifies the CodeWhisperer profile, when required
	// by the account type.
	ProfileArn string

	// Tokens supplies bearer tokens for upstream calls.
	Tokens TokenSource

	// ModelMap rewrites requested model names to upstream model IDs.
	// Unmapped names pass through unchanged.
	ModelMap map[string]string

	// ConnectTimeout bounds dialing and request submission. The
	// response body read is not bounded; streams live as long as the
	// upstream keeps talking and the request context allows.
	ConnectTimeout time.Duration

	// HTTPClient overrides the transport used for upstream calls.
	HTTPClient *http.Client

	// Observer, when set, receives raw upstream bytes and translated
	// event bytes.
	Observer provider.Observer

	Logger *slog.Logger
}

// Client is the Kiro provider adapter. It implements
// provider.Provider.
type Client struct {
	baseURL    string
	profileArn string
	tokens     TokenSource
	modelMap   map[string]string
	httpClient *http.Client
	observer   provider.Observer
	logger     *slog.Logger
}

// New creates a Kiro client from config.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("kiro: base URL is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("kiro: token source is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		connectTimeout := cfg.ConnectTimeout
		if connectTimeout <= 0 {
			connectTimeout = 30 * time.Second
		}
		transport := &http.Transport{
			MaxIdleConns:        16,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			// Bounds time-to-first-byte only. An overall client
			// timeout would cut long streams short.
			ResponseHeaderTimeout: connectTimeout,
		}
		httpClient = &http.Client{Transport: transport}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		profileArn: cfg.ProfileArn,
		tokens:     cfg.Tokens,
		modelMap:   cfg.ModelMap,
		httpClient: httpClient,
		observer:   cfg.Observer,
		logger:     logger,
	}, nil
}

// Name implements provider.Provider.
func (c *Client) Name() string { return "kiro" }

// Close implements provider.Provider.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Complete performs a non-streaming request: the upstream event stream
// is decoded and collected into a single Message.
func (c *Client) Complete(ctx context.Context, req *api.MessagesRequest) (*api.Message, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, translateError(err)
	}
	defer resp.Body.Close()

	decoder := NewDecoder(c.logger)
	collector := NewCollector(api.NewMessageID(), req.Model, c.logger)

	buf := make([]byte, readChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			c.observeRaw(buf[:n])
			records, decErr := decoder.Feed(buf[:n])
			for _, rec := range records {
				collector.Add(rec)
			}
			if decErr != nil {
				return nil, translateError(decErr)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("kiro: read response: %w", readErr)
		}
	}
	return collector.Finish(decoder.Drain()), nil
}

// Stream performs a streaming request. The returned channel yields the
// Anthropic event sequence and closes after the terminal event. Errors
// arrive in-band: the element carrying a non-nil Err holds the error
// event that was emitted for it.
func (c *Client) Stream(ctx context.Context, req *api.MessagesRequest) (<-chan provider.StreamResult, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, translateError(err)
	}

	translator := NewStreamTranslator(api.NewMessageID(), req.Model, c.logger)
	ch := make(chan provider.StreamResult, 16)
	go c.translateStream(ctx, resp.Body, translator, ch)
	return ch, nil
}

func (c *Client) translateStream(ctx context.Context, body io.ReadCloser, translator *StreamTranslator, ch chan<- provider.StreamResult) {
	defer close(ch)
	defer body.Close()

	emit := func(ev api.StreamEvent) {
		c.observeTranslated(ev)
		select {
		case ch <- provider.StreamResult{Event: ev}:
		case <-ctx.Done():
		}
	}
	fail := func(err error) {
		ev := translator.Fail(err)
		c.observeTranslated(ev)
		select {
		case ch <- provider.StreamResult{Event: ev, Err: err}:
		case <-ctx.Done():
		}
	}

	decoder := NewDecoder(c.logger)
	buf := make([]byte, readChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			c.observeRaw(buf[:n])
			records, decErr := decoder.Feed(buf[:n])
			for _, rec := range records {
				for _, ev := range translator.Translate(rec) {
					emit(ev)
				}
			}
			if decErr != nil {
				fail(decErr)
				return
			}
		}
		if readErr == io.EOF {
			for _, ev := range translator.Finish(decoder.Drain()) {
				emit(ev)
			}
			return
		}
		if readErr != nil {
			if ctx.Err() != nil {
				// Caller-driven cancellation: the consumer is gone,
				// nobody is reading the terminal event.
				return
			}
			fail(fmt.Errorf("kiro: read response: %w", readErr))
			return
		}
	}
}

// send builds and submits the upstream request, returning the response
// with an open body on success.
func (c *Client) send(ctx context.Context, req *api.MessagesRequest) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	conversationID := uuid.NewString()
	body := translateRequest(req, conversationID, c.profileArn, c.modelID(req.Model))
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("kiro: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+defaultEndpointPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("kiro: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	c.logger.Debug("sending upstream request",
		"conversation_id", conversationID,
		"model", c.modelID(req.Model),
		"history_len", len(body.ConversationState.History))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("kiro: request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstreamErr := mapHTTPError(resp)
		resp.Body.Close()
		return nil, upstreamErr
	}
	return resp, nil
}

func (c *Client) modelID(model string) string {
	if mapped, ok := c.modelMap[model]; ok {
		return mapped
	}
	return model
}

func (c *Client) observeRaw(p []byte) {
	if c.observer != nil {
		c.observer.ObserveRaw(p)
	}
}

func (c *Client) observeTranslated(ev api.StreamEvent) {
	if c.observer == nil {
		return
	}
	if data, err := json.Marshal(ev); err == nil {
		c.observer.ObserveTranslated(data)
	}
}
