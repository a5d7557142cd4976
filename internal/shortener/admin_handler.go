package shortener

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sundayezeilo/linkshield/internal/httpx"
	"github.com/sundayezeilo/linkshield/internal/tracking"
)

// ModerateLinkBody is the JSON request body for an admin's edits.
type ModerateLinkBody struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=active disabled flagged"`
}

// AdminLinkResponse adds the fields only moderators see.
type AdminLinkResponse struct {
	LinkResponse
	OwnerID   *uuid.UUID `json:"ownerId,omitempty"`
	CreatorIP string     `json:"creatorIp,omitempty"`
}

// AdminHandler serves the moderation endpoints.
type AdminHandler struct {
	admin   Admin
	logger  *slog.Logger
	baseURL string
}

// AdminHandlerConfig holds configuration for the admin handler.
type AdminHandlerConfig struct {
	Admin   Admin
	Logger  *slog.Logger
	BaseURL string
}

func NewAdminHandler(cfg AdminHandlerConfig) *AdminHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		admin:   cfg.Admin,
		logger:  logger,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

func (h *AdminHandler) toResponse(l Link) AdminLinkResponse {
	return AdminLinkResponse{
		LinkResponse: linkResponse(h.baseURL, l),
		OwnerID:      l.OwnerID,
		CreatorIP:    l.CreatorIP,
	}
}

func (h *AdminHandler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"admin", true,
	)
}

// Dashboard handles GET /api/admin/dashboard.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.admin.Dashboard(ctx)
	if err != nil {
		respondError(ctx, h.requestLogger(r), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

// ListLinks handles GET /api/admin/links?status=&limit=&offset=.
func (h *AdminHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit, ok := queryInt(w, q.Get("limit"), "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, q.Get("offset"), "offset")
	if !ok {
		return
	}

	links, err := h.admin.ListLinks(ctx, LinkFilter{
		Status: q.Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(ctx, h.requestLogger(r), w, err)
		return
	}

	out := make([]AdminLinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, h.toResponse(l))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// GetLink handles GET /api/admin/links/{id}.
func (h *AdminHandler) GetLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathLinkID(w, r)
	if !ok {
		return
	}

	link, err := h.admin.GetLink(ctx, id)
	if err != nil {
		respondError(ctx, h.requestLogger(r), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.toResponse(link))
}

// ModerateLink handles PATCH /api/admin/links/{id}.
func (h *AdminHandler) ModerateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	id, ok := pathLinkID(w, r)
	if !ok {
		return
	}
	body, ok := decodeBody[ModerateLinkBody](w, r, logger)
	if !ok {
		return
	}

	link, err := h.admin.Moderate(ctx, id, LinkPatch(body))
	if err != nil {
		respondError(ctx, logger, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.toResponse(link))
}

// DeleteLink handles DELETE /api/admin/links/{id}.
func (h *AdminHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathLinkID(w, r)
	if !ok {
		return
	}

	if err := h.admin.DeleteLink(ctx, id); err != nil {
		respondError(ctx, h.requestLogger(r), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LinkClicks handles GET /api/admin/links/{id}/clicks?limit=.
func (h *AdminHandler) LinkClicks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathLinkID(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r.URL.Query().Get("limit"), "limit")
	if !ok {
		return
	}

	clicks, err := h.admin.LinkClicks(ctx, id, limit)
	if err != nil {
		respondError(ctx, h.requestLogger(r), w, err)
		return
	}
	if clicks == nil {
		clicks = []tracking.Click{}
	}
	httpx.WriteJSON(w, http.StatusOK, clicks)
}

func pathLinkID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid link id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter; empty yields 0.
func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", name+" must be an integer", nil)
		return 0, false
	}
	return n, true
}
