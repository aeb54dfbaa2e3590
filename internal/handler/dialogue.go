// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/dialogue-tree/internal/dialogue"
	"github.com/capitalize-ai/dialogue-tree/internal/middleware"
	"github.com/capitalize-ai/dialogue-tree/internal/model"
	"github.com/capitalize-ai/dialogue-tree/internal/service"
	"github.com/capitalize-ai/dialogue-tree/pkg/logger"
)

// DialogueHandler handles dialogue tree endpoints.
type DialogueHandler struct {
	service *service.DialogueService
	logger  *logger.Logger

	// editMiddleware wraps the edit endpoint, which calls the summarizer.
	editMiddleware []func(http.Handler) http.Handler
}

// NewDialogueHandler creates a new dialogue handler.
func NewDialogueHandler(svc *service.DialogueService, log *logger.Logger, editMiddleware ...func(http.Handler) http.Handler) *DialogueHandler {
	return &DialogueHandler{
		service:        svc,
		logger:         log,
		editMiddleware: editMiddleware,
	}
}

// Routes mounts the dialogue endpoints under /characters/{characterID}/dialogue.
func (h *DialogueHandler) Routes(r chi.Router) {
	r.Route("/characters/{characterID}/dialogue", func(r chi.Router) {
		r.Use(h.requireCharacter)

		r.Post("/", h.Reset)
		r.Put("/", h.Import)
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)

		r.Get("/path", h.CurrentPath)
		r.Get("/layout", h.Layout)
		r.Get("/events", h.Events)
		r.Post("/switch", h.Switch)

		r.Post("/nodes", h.AppendTurn)
		r.With(h.editMiddleware...).Put("/nodes/{nodeID}", h.Edit)
		r.Get("/nodes/{nodeID}/thread", h.Thread)
	})
}

func (h *DialogueHandler) requireCharacter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := middleware.ValidateCharacterID(chi.URLParam(r, "characterID")); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Reset handles POST /api/v1/characters/:characterID/dialogue
func (h *DialogueHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	characterID := chi.URLParam(r, "characterID")

	snap, err := h.service.Reset(ctx, tenantID, characterID)
	if err != nil {
		h.fail(w, r, "failed to create dialogue tree", err)
		return
	}

	writeJSON(w, http.StatusCreated, snap)
}

// Import handles PUT /api/v1/characters/:characterID/dialogue
func (h *DialogueHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	characterID := chi.URLParam(r, "characterID")

	var snap dialogue.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", CodeInvalidRequest)
		return
	}

	for _, node := range snap.Nodes {
		if err := middleware.ValidateNodeID(node.NodeID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidRequest)
			return
		}
	}

	imported, err := h.service.Import(ctx, tenantID, characterID, snap)
	if err != nil {
		h.fail(w, r, "failed to import dialogue tree", err)
		return
	}

	writeJSON(w, http.StatusOK, imported)
}

// Get handles GET /api/v1/characters/:characterID/dialogue
func (h *DialogueHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	characterID := chi.URLParam(r, "characterID")

	snap, err := h.service.GetDialogue(ctx, tenantID, characterID)
	if err != nil {
		h.fail(w, r, "failed to get dialogue tree", err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// Delete handles DELETE /api/v1/characters/:characterID/dialogue
func (h *DialogueHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	characterID := chi.URLParam(r, "characterID")

	if err := h.service.Delete(ctx, tenantID, characterID); err != nil {
		h.fail(w, r, "failed to delete dialogue tree", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CurrentPath handles GET /api/v1/characters/:characterID/dialogue/path
func (h *DialogueHandler) CurrentPath(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	characterID := chi.URLParam(r, "characterID")

	resp, err := h.service.CurrentPath(ctx, tenantID, characterID)
	if err != nil {
		h.fail(w, r, "failed to compute current path", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Layout handles GET /api/v1/characters/:characterID/dialogue/layout
func (h *DialogueHandler) Layout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	characterID := chi.URLParam(r, "characterID")

	graph, err := h.service.Layout(ctx, tenantID, characterID)
	if err != nil {
		h.fail(w, r, "failed to lay out dialogue tree", err)
		return
	}

	writeJSON(w, http.StatusOK, graph)
}

// Events handles GET /api/v1/characters/:characterID/dialogue/events
func (h *DialogueHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	characterID := chi.URLParam(r, "characterID")

	limit := 50
	var afterSequence uint64

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	if a := r.URL.Query().Get("after_sequence"); a != "" {
		if parsed, err := strconv.ParseUint(a, 10, 64); err == nil {
			afterSequence = parsed
		}
	}

	page, err := h.service.Events(ctx, tenantID, characterID, afterSequence, limit)
	if err != nil {
		h.fail(w, r, "failed to get events", err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// Switch handles POST /api/v1/characters/:characterID/dialogue/switch
func (h *DialogueHandler) Switch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	characterID := chi.URLParam(r, "characterID")

	var req model.SwitchBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", CodeInvalidRequest)
		return
	}

	if err := middleware.ValidateNodeID(req.NodeID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidRequest)
		return
	}

	result, err := h.service.Switch(ctx, tenantID, characterID, req.NodeID)
	if err != nil {
		h.fail(w, r, "failed to switch branch", err)
		return
	}

	writeJSON(w, http.StatusOK, model.SwitchBranchResponse{
		CurrentNodeID: result.CurrentNodeID,
		Changed:       result.Changed,
		Path:          result.Path.IDs,
	})
}

// AppendTurn handles POST /api/v1/characters/:characterID/dialogue/nodes
func (h *DialogueHandler) AppendTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	characterID := chi.URLParam(r, "characterID")

	var req model.AppendTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", CodeInvalidRequest)
		return
	}

	if req.ParentNodeID != "" {
		if err := middleware.ValidateNodeID(req.ParentNodeID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidRequest)
			return
		}
	}
	for _, text := range []string{req.UserInput, req.AssistantResponse, req.FullResponse} {
		if err := middleware.ValidateTurnText(text); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidRequest)
			return
		}
	}

	node, err := h.service.AppendTurn(ctx, tenantID, characterID, &req)
	if err != nil {
		h.fail(w, r, "failed to append turn", err)
		return
	}

	writeJSON(w, http.StatusCreated, node)
}

// Edit handles PUT /api/v1/characters/:characterID/dialogue/nodes/:nodeID
func (h *DialogueHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	characterID := chi.URLParam(r, "characterID")
	nodeID := chi.URLParam(r, "nodeID")

	if err := middleware.ValidateNodeID(nodeID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidRequest)
		return
	}

	var req model.EditNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", CodeInvalidRequest)
		return
	}

	if err := middleware.ValidateContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidRequest)
		return
	}

	node, err := h.service.Edit(ctx, tenantID, characterID, nodeID, &req)
	if err != nil {
		h.fail(w, r, "failed to edit node", err)
		return
	}

	writeJSON(w, http.StatusOK, node)
}

// Thread handles GET /api/v1/characters/:characterID/dialogue/nodes/:nodeID/thread
func (h *DialogueHandler) Thread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	characterID := chi.URLParam(r, "characterID")
	nodeID := chi.URLParam(r, "nodeID")

	if err := middleware.ValidateNodeID(nodeID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidRequest)
		return
	}

	thread, err := h.service.Thread(ctx, tenantID, characterID, nodeID)
	if err != nil {
		h.fail(w, r, "failed to get thread", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"node_id": nodeID,
		"turns":   thread,
	})
}

func (h *DialogueHandler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message,
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
	}
	switch code {
	case CodeInternal:
		writeError(w, status, message, code)
	default:
		writeError(w, status, err.Error(), code)
	}
}
