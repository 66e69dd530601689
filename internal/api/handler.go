package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felipepmaragno/chat-relay/internal/agent"
	"github.com/felipepmaragno/chat-relay/internal/budget"
	"github.com/felipepmaragno/chat-relay/internal/cost"
	"github.com/felipepmaragno/chat-relay/internal/domain"
	"github.com/felipepmaragno/chat-relay/internal/metrics"
	"github.com/felipepmaragno/chat-relay/internal/provider"
	"github.com/felipepmaragno/chat-relay/internal/sse"
	"github.com/felipepmaragno/chat-relay/internal/telemetry"
	"github.com/felipepmaragno/chat-relay/internal/tools"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HandlerConfig struct {
	Agents            *agent.Registry
	Provider          provider.Provider
	Estimator         *cost.Estimator
	Tracker           cost.Tracker
	Tools             *tools.Registry
	Budget            *budget.Monitor
	HeartbeatInterval time.Duration
}

type Handler struct {
	agents            *agent.Registry
	provider          provider.Provider
	estimator         *cost.Estimator
	tracker           cost.Tracker
	tools             *tools.Registry
	budget            *budget.Monitor
	heartbeatInterval time.Duration
	checkers          []HealthChecker
	mux               *http.ServeMux
}

func NewHandler(cfg HandlerConfig) *Handler {
	heartbeat := cfg.HeartbeatInterval
	if heartbeat == 0 {
		heartbeat = 15 * time.Second
	}

	h := &Handler{
		agents:            cfg.Agents,
		provider:          cfg.Provider,
		estimator:         cfg.Estimator,
		tracker:           cfg.Tracker,
		tools:             cfg.Tools,
		budget:            cfg.Budget,
		heartbeatInterval: heartbeat,
		mux:               http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /v1/chat", h.handleChat)
	h.mux.HandleFunc("GET /v1/agents", h.handleListAgents)
	h.mux.HandleFunc("GET /v1/models", h.handleListModels)
	h.mux.HandleFunc("GET /v1/tools", h.handleListTools)
	h.mux.HandleFunc("GET /v1/usage", h.handleUsage)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /health/live", h.handleHealthLive)
	h.mux.HandleFunc("GET /health/ready", h.handleHealthReady)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	persona, err := h.resolveAgent(req.Agent)
	if err != nil {
		if errors.Is(err, domain.ErrAgentNotFound) {
			writeError(w, http.StatusNotFound, "unknown agent: "+req.Agent.Name)
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	if err := validateMessages(req.Messages); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	streaming := req.Streaming()

	ctx, span := telemetry.StartSpan(ctx, "chat.relay")
	defer span.End()
	telemetry.AddTurnAttributes(span, persona.Name, persona.Model, h.provider.ID(), requestID, streaming)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Request-ID", requestID)

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	enc := sse.NewEncoder(w)
	defer enc.Close()
	enc.StartHeartbeat(h.heartbeatInterval)

	if err := enc.Metadata(persona, start); err != nil {
		slog.Warn("client gone before metadata", "request_id", requestID, "error", err)
		return
	}

	upstreamReq := provider.Request{
		Model:       persona.Model,
		System:      persona.SystemPrompt,
		Messages:    req.Messages,
		Temperature: persona.Temperature,
		MaxTokens:   persona.MaxTokens,
	}

	turn := turnState{
		requestID: requestID,
		persona:   persona,
		streamed:  streaming,
		start:     start,
	}

	if streaming {
		h.relayStream(ctx, enc, upstreamReq, &turn)
	} else {
		h.relayComplete(ctx, enc, upstreamReq, &turn)
	}
}

// turnState accumulates usage for one relay invocation. Counters are
// owned by this request only; nothing is shared across streams.
type turnState struct {
	requestID    string
	persona      domain.AgentConfig
	streamed     bool
	start        time.Time
	inputTokens  int
	outputTokens int
}

func (h *Handler) relayStream(ctx context.Context, enc *sse.Encoder, req provider.Request, turn *turnState) {
	chunks, errs := h.provider.Stream(ctx, req)

	for chunk := range chunks {
		switch chunk.Kind {
		case provider.ChunkStart:
			turn.inputTokens = chunk.InputTokens
		case provider.ChunkText:
			if err := enc.Token(chunk.Text); err != nil {
				slog.Warn("token write failed", "request_id", turn.requestID, "error", err)
				return
			}
		case provider.ChunkUsage:
			// Last value before end-of-stream wins.
			turn.outputTokens = chunk.OutputTokens
		}
	}

	// The provider closes the error channel before the chunk channel, so
	// a buffered failure is always visible here.
	if err, ok := <-errs; ok && err != nil {
		h.finishWithError(ctx, enc, turn, err)
		return
	}

	if ctx.Err() != nil {
		// Client disconnected; the upstream call was cancelled through
		// the shared context and there is no transport left to close
		// cleanly.
		slog.Info("client disconnected mid-stream",
			"request_id", turn.requestID,
			"agent", turn.persona.Name,
		)
		metrics.RecordRequest(turn.persona.Name, turn.persona.Model, h.provider.ID(), "cancelled", time.Since(turn.start).Seconds())
		return
	}

	h.finishWithUsage(ctx, enc, turn)
}

func (h *Handler) relayComplete(ctx context.Context, enc *sse.Encoder, req provider.Request, turn *turnState) {
	completion, err := h.provider.Complete(ctx, req)
	if err != nil {
		h.finishWithError(ctx, enc, turn, err)
		return
	}

	// An empty completion still yields a token event; see the decoder
	// contract for why the degraded case is not a typed error.
	if err := enc.Token(completion.Text); err != nil {
		slog.Warn("token write failed", "request_id", turn.requestID, "error", err)
		return
	}

	turn.inputTokens = completion.InputTokens
	turn.outputTokens = completion.OutputTokens
	h.finishWithUsage(ctx, enc, turn)
}

func (h *Handler) finishWithUsage(ctx context.Context, enc *sse.Encoder, turn *turnState) {
	estimated := h.estimator.Estimate(turn.persona.Model, turn.inputTokens, turn.outputTokens)

	if err := enc.Usage(turn.inputTokens, turn.outputTokens, estimated); err != nil {
		slog.Warn("usage write failed", "request_id", turn.requestID, "error", err)
	}

	latency := time.Since(turn.start)

	span := telemetry.SpanFromContext(ctx)
	telemetry.AddTokenAttributes(span, turn.inputTokens, turn.outputTokens)
	telemetry.AddCostAttribute(span, estimated)

	metrics.RecordRequest(turn.persona.Name, turn.persona.Model, h.provider.ID(), "ok", latency.Seconds())
	metrics.RecordTokens(turn.persona.Name, turn.persona.Model, turn.inputTokens, turn.outputTokens)
	metrics.RecordCost(turn.persona.Name, turn.persona.Model, estimated)

	if h.tracker != nil {
		record := cost.UsageRecord{
			RequestID:    turn.requestID,
			Agent:        turn.persona.Name,
			Model:        turn.persona.Model,
			Provider:     h.provider.ID(),
			InputTokens:  turn.inputTokens,
			OutputTokens: turn.outputTokens,
			CostUSD:      estimated,
			Streamed:     turn.streamed,
			LatencyMs:    latency.Milliseconds(),
			Timestamp:    time.Now(),
		}
		if err := h.tracker.Record(ctx, record); err != nil {
			slog.Warn("usage record failed", "request_id", turn.requestID, "error", err)
		}
	}

	if h.budget != nil {
		if _, err := h.budget.Check(ctx); err != nil {
			slog.Warn("spend budget check failed", "request_id", turn.requestID, "error", err)
		}
	}

	slog.Info("chat turn completed",
		"request_id", turn.requestID,
		"agent", turn.persona.Name,
		"model", turn.persona.Model,
		"provider", h.provider.ID(),
		"input_tokens", turn.inputTokens,
		"output_tokens", turn.outputTokens,
		"cost_usd", estimated,
		"latency_ms", latency.Milliseconds(),
	)
}

func (h *Handler) finishWithError(ctx context.Context, enc *sse.Encoder, turn *turnState, err error) {
	code := domain.UnknownErrorCode
	var details map[string]any

	var provErr *domain.ProviderError
	if errors.As(err, &provErr) {
		code = provErr.Code()
		if provErr.ErrType != "" {
			details = map[string]any{"type": provErr.ErrType}
		}
	}

	if writeErr := enc.Error(err.Error(), code, details); writeErr != nil {
		slog.Warn("error write failed", "request_id", turn.requestID, "error", writeErr)
	}

	telemetry.AddErrorAttribute(telemetry.SpanFromContext(ctx), err)
	metrics.RecordRequest(turn.persona.Name, turn.persona.Model, h.provider.ID(), "error", time.Since(turn.start).Seconds())
	metrics.RecordProviderError(h.provider.ID(), code)

	slog.Error("chat turn failed",
		"request_id", turn.requestID,
		"agent", turn.persona.Name,
		"model", turn.persona.Model,
		"code", code,
		"error", err,
	)
}

// resolveAgent accepts either a full inline persona or a bare name
// resolved against the registry.
func (h *Handler) resolveAgent(cfg domain.AgentConfig) (domain.AgentConfig, error) {
	if cfg.Name == "" {
		return domain.AgentConfig{}, errors.New("agent name is required")
	}

	if cfg.Model == "" && cfg.SystemPrompt == "" {
		persona, ok := h.agents.Get(cfg.Name)
		if !ok {
			return domain.AgentConfig{}, domain.ErrAgentNotFound
		}
		return persona, nil
	}

	if cfg.Model == "" {
		return domain.AgentConfig{}, errors.New("agent model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return cfg, nil
}

func validateMessages(messages []domain.Message) error {
	if len(messages) == 0 {
		return errors.New("messages must not be empty")
	}
	for i, m := range messages {
		if m.Role != "user" && m.Role != "assistant" {
			return fmt.Errorf("invalid role %q in message %d", m.Role, i)
		}
	}
	return nil
}

func (h *Handler) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": h.agents.List()})
}

func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": agent.AvailableModels})
}

func (h *Handler) handleListTools(w http.ResponseWriter, r *http.Request) {
	if h.tools == nil {
		writeJSON(w, http.StatusOK, map[string]any{"tools": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": h.tools.List()})
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	if h.tracker == nil {
		writeJSON(w, http.StatusOK, map[string]any{"total_cost_usd": 0.0})
		return
	}

	total, err := h.tracker.TotalCost(r.Context())
	if err != nil {
		slog.Error("usage lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total_cost_usd": total})
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Cache-Control, X-Request-ID")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "error",
			"code":    status,
		},
	})
}
