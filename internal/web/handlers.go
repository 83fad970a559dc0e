package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"comfy-studio/server/internal/config"
	"comfy-studio/server/internal/engine"
	"comfy-studio/server/internal/generators"
	"comfy-studio/server/internal/infra"
	"comfy-studio/server/internal/prompter"
	"comfy-studio/server/internal/storage"
	"comfy-studio/server/internal/workflow"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

type Handlers struct {
	config    *config.Config
	hub       *RunHub
	engine    *engine.RunEngine
	catalog   generators.ModelCatalog
	redis     *storage.RedisStore
	mysql     *storage.MySQLStore
	cache     *generators.ArtifactCache
	monitor   *infra.EngineMonitor
	assistant *prompter.Assistant
}

func NewHandlers(
	cfg *config.Config,
	hub *RunHub,
	runEngine *engine.RunEngine,
	catalog generators.ModelCatalog,
	redisStore *storage.RedisStore,
	mysqlStore *storage.MySQLStore,
	cache *generators.ArtifactCache,
	monitor *infra.EngineMonitor,
	assistant *prompter.Assistant,
) *Handlers {
	return &Handlers{
		config:    cfg,
		hub:       hub,
		engine:    runEngine,
		catalog:   catalog,
		redis:     redisStore,
		mysql:     mysqlStore,
		cache:     cache,
		monitor:   monitor,
		assistant: assistant,
	}
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "comfy-studio",
	})
}

// GetModels serves the model catalog fetched from the engine at startup.
func (h *Handlers) GetModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog)
}

// GenerateRequest is the POST /generate body.
type GenerateRequest struct {
	Kind   string                            `json:"kind"`
	Params workflow.GenerationParams         `json:"params"`
	Inputs map[string]generators.VisualInput `json:"inputs,omitempty"`
}

// Generate accepts a generation request and starts it asynchronously. One
// run at a time; a request while busy gets 409 and the browser keeps its
// submit button disabled until the running job ends.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	kind, err := workflow.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The run outlives this request; its lifetime must not be tied to the
	// request context.
	runID, err := h.engine.StartRun(context.Background(), engine.GenerateRequest{
		Kind:   kind,
		Params: req.Params,
		Inputs: req.Inputs,
	})
	if errors.Is(err, engine.ErrEngineBusy) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// GetRun serves one run's current state. Runs from before a restart are
// answered from the Redis mirror.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")

	if run, ok := h.engine.Run(runID); ok {
		writeJSON(w, http.StatusOK, run)
		return
	}

	if h.redis != nil {
		var run engine.Run
		found, err := h.redis.GetRunState(r.Context(), runID, &run)
		if err != nil {
			log.Printf("[Handlers] Run state mirror read failed: %v", err)
		} else if found {
			writeJSON(w, http.StatusOK, run)
			return
		}
	}

	writeError(w, http.StatusNotFound, "run not found")
}

// ListRuns serves all runs known to this process, newest first.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": h.engine.Runs(),
		"busy": h.engine.Busy(),
	})
}

// StreamRuns upgrades to a WebSocket carrying run lifecycle events.
func (h *Handlers) StreamRuns(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		ID:   generateClientID(),
		Conn: conn,
		Send: make(chan []byte, 256),
		Hub:  h.hub,
	}
	h.hub.register <- client

	welcome, _ := json.Marshal(map[string]interface{}{
		"type": "connected",
		"id":   client.ID,
		"time": time.Now().Unix(),
	})
	select {
	case client.Send <- welcome:
	default:
	}

	go client.readPump()
}

// ListArtifacts serves the artifact strip, newest first.
func (h *Handlers) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	if h.redis == nil {
		writeError(w, http.StatusServiceUnavailable, "artifact store unavailable")
		return
	}

	limit := int64(100)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			limit = parsed
		}
	}

	artifacts, err := h.redis.ListArtifacts(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list artifacts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"artifacts": artifacts})
}

// DeleteArtifact removes one artifact from the strip and from history.
func (h *Handlers) DeleteArtifact(w http.ResponseWriter, r *http.Request) {
	if h.redis == nil {
		writeError(w, http.StatusServiceUnavailable, "artifact store unavailable")
		return
	}

	id := chi.URLParam(r, "id")

	removed, err := h.redis.RemoveArtifact(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove artifact")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}

	if h.mysql != nil {
		if err := h.mysql.DeleteArtifact(id); err != nil {
			log.Printf("[Handlers] Failed to delete artifact %s from history: %v", id, err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// GetArtifactFile proxies an artifact's bytes from the engine through the
// disk cache, so the browser never talks to the engine directly.
func (h *Handlers) GetArtifactFile(w http.ResponseWriter, r *http.Request) {
	if h.redis == nil {
		writeError(w, http.StatusServiceUnavailable, "artifact store unavailable")
		return
	}

	id := chi.URLParam(r, "id")

	artifact, found, err := h.redis.GetArtifact(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up artifact")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}

	filename, subfolder, fileType, err := parseViewURL(artifact.URL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "artifact has no retrievable file")
		return
	}

	data, err := h.cache.Get(r.Context(), filename, subfolder, fileType)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to fetch artifact from engine")
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(filename))
	w.Header().Set("Content-Disposition", `inline; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GetEngineStatus serves the engine reachability snapshot.
func (h *Handlers) GetEngineStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Status())
}

// SuggestRequest is the POST /prompt/suggest body.
type SuggestRequest struct {
	Question string             `json:"question"`
	Kind     string             `json:"kind"`
	History  []prompter.Message `json:"history,omitempty"`
}

// SuggestPrompt drafts a positive prompt with the local LLM.
func (h *Handlers) SuggestPrompt(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	kind, err := workflow.ParseKind(req.Kind)
	if err != nil {
		kind = workflow.KindImageGeneration
	}

	response, err := h.assistant.Suggest(r.Context(), kind, req.Question, req.History)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

// RefineRequest is the POST /prompt/refine body.
type RefineRequest struct {
	LastPrompt string `json:"last_prompt"`
	Feedback   string `json:"feedback"`
	Kind       string `json:"kind"`
}

// RefinePrompt rewrites a prompt pair from user feedback.
func (h *Handlers) RefinePrompt(w http.ResponseWriter, r *http.Request) {
	var req RefineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.LastPrompt == "" || req.Feedback == "" {
		writeError(w, http.StatusBadRequest, "last_prompt and feedback are required")
		return
	}

	kind, err := workflow.ParseKind(req.Kind)
	if err != nil {
		kind = workflow.KindImageGeneration
	}

	refined, err := h.assistant.Refine(r.Context(), kind, req.LastPrompt, req.Feedback)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, refined)
}

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Max-Age", "300")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter assembles the panel's HTTP surface.
func NewRouter(handlers *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Request logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("REQUEST: %s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	})
	r.Use(corsMiddleware)

	r.Get("/health", handlers.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/models", handlers.GetModels)
		r.Post("/generate", handlers.Generate)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", handlers.ListRuns)
			r.Get("/stream", handlers.StreamRuns)
			r.Get("/{run_id}", handlers.GetRun)
		})

		r.Route("/artifacts", func(r chi.Router) {
			r.Get("/", handlers.ListArtifacts)
			r.Delete("/{id}", handlers.DeleteArtifact)
			r.Get("/{id}/file", handlers.GetArtifactFile)
		})

		r.Get("/engine/status", handlers.GetEngineStatus)

		r.Route("/prompt", func(r chi.Router) {
			r.Post("/suggest", handlers.SuggestPrompt)
			r.Post("/refine", handlers.RefinePrompt)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseViewURL recovers the engine-side file coordinates from an
// artifact's retrieval URL.
func parseViewURL(raw string) (filename, subfolder, fileType string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", err
	}
	q := u.Query()
	filename = q.Get("filename")
	if filename == "" {
		return "", "", "", errors.New("missing filename")
	}
	return filename, q.Get("subfolder"), q.Get("type"), nil
}

func contentTypeFor(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".png"):
		return "image/png"
	case strings.HasSuffix(filename, ".jpg"), strings.HasSuffix(filename, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(filename, ".webp"):
		return "image/webp"
	case strings.HasSuffix(filename, ".glb"):
		return "model/gltf-binary"
	default:
		return "application/octet-stream"
	}
}

func generateClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
