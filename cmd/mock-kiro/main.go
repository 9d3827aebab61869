// Command mock-kiro runs a deterministic Kiro-protocol server for
// conformance testing. It speaks the binary event-stream framing and
// returns predictable responses based on request content analysis.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kirogate/kirogate/pkg/provider/kiro"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /generateAssistantResponse", handleGenerate)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock kiro backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock kiro backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock kiro backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types (the subset the mock inspects) ---

type generateRequest struct {
	ConversationState struct {
		CurrentMessage struct {
			UserInputMessage struct {
				Content string `json:"content"`
				Context *struct {
					Tools []any `json:"tools"`
				} `json:"userInputMessageContext"`
			} `json:"userInputMessage"`
		} `json:"currentMessage"`
	} `json:"conversationState"`
}

func (r *generateRequest) content() string {
	return r.ConversationState.CurrentMessage.UserInputMessage.Content
}

func (r *generateRequest) hasTools() bool {
	ctx := r.ConversationState.CurrentMessage.UserInputMessage.Context
	return ctx != nil && len(ctx.Tools) > 0
}

// --- Handler ---

func handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"message":"invalid request"}`, http.StatusBadRequest)
		return
	}

	content := strings.ToLower(req.content())

	if strings.Contains(content, "trigger error") {
		writeFrames(w, exceptionFrames())
		return
	}
	if req.hasTools() && strings.Contains(content, "weather") {
		writeFrames(w, toolUseFrames())
		return
	}
	if strings.Contains(content, "inline tool") {
		writeFrames(w, inlineToolFrames())
		return
	}
	writeFrames(w, textFrames(content))
}

func writeFrames(w http.ResponseWriter, frames [][]byte) {
	w.Header().Set("Content-Type", "application/vnd.amazon.eventstream")
	flusher, _ := w.(http.Flusher)
	for _, frame := range frames {
		w.Write(frame)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// --- Scenarios ---

func textFrames(content string) [][]byte {
	tokens := []string{"Hello", ", ", "nice", " ", "day", "!"}
	if strings.Contains(content, "count from 1 to 5") {
		tokens = []string{"1", ", ", "2", ", ", "3", ", ", "4", ", ", "5"}
	}

	var frames [][]byte
	for _, tok := range tokens {
		frames = append(frames, contentFrame(tok))
	}
	frames = append(frames, metadataFrame(10, len(tokens)))
	return frames
}

// toolUseFrames emits a tool call with its arguments split across two
// fragments, the way the real backend streams them.
func toolUseFrames() [][]byte {
	frames := [][]byte{
		contentFrame("Let me check that for you."),
		toolUseFrame("tooluse_mock_1", "get_weather", `{"location":"San `, false),
		toolUseFrame("tooluse_mock_1", "get_weather", `Francisco"}`, true),
		metadataFrame(20, 15),
	}
	return frames
}

// inlineToolFrames emits a tool call encoded as bracket markup inside
// the content text.
func inlineToolFrames() [][]byte {
	return [][]byte{
		contentFrame(`[tool_call:get_weather{"location":"Berlin"}]`),
		metadataFrame(18, 12),
	}
}

func exceptionFrames() [][]byte {
	payload, _ := json.Marshal(map[string]string{
		"message": "The bearer token included in the request is invalid.",
	})
	return [][]byte{
		contentFrame("Starting up"),
		kiro.EncodeExceptionFrame("AccessDeniedException", payload),
	}
}

// --- Frame builders ---

func contentFrame(text string) []byte {
	payload, _ := json.Marshal(map[string]string{"content": text})
	return kiro.EncodeEventFrame("assistantResponseEvent", payload)
}

func toolUseFrame(id, name, input string, stop bool) []byte {
	body := map[string]any{
		"toolUseId": id,
		"name":      name,
		"input":     input,
	}
	if stop {
		body["stop"] = true
	}
	payload, _ := json.Marshal(body)
	return kiro.EncodeEventFrame("toolUseEvent", payload)
}

func metadataFrame(inputTokens, outputTokens int) []byte {
	payload, _ := json.Marshal(map[string]any{
		"tokenUsage": map[string]any{
			"uncachedInputTokens":  inputTokens,
			"cacheReadInputTokens": 0,
			"outputTokens":         outputTokens,
			"totalTokens":          inputTokens + outputTokens,
		},
	})
	return kiro.EncodeEventFrame("messageMetadataEvent", payload)
}
