package shortener

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/linkshield/internal/errx"
	"github.com/sundayezeilo/linkshield/internal/httpx"
	"github.com/sundayezeilo/linkshield/internal/tracking"
)

// CreateLinkBody is the JSON request body for creating a link.
type CreateLinkBody struct {
	URL         string     `json:"url" validate:"required,http_url,max=2048"`
	CustomCode  string     `json:"customCode,omitempty" validate:"omitempty,min=3,max=64"`
	Title       string     `json:"title,omitempty" validate:"max=200"`
	Description string     `json:"description,omitempty" validate:"max=1000"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	MaxClicks   *int64     `json:"maxClicks,omitempty" validate:"omitempty,gt=0"`
}

// UpdateLinkBody is the JSON request body for an owner's edits.
type UpdateLinkBody struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=active disabled"`
}

// LinkResponse is the JSON representation of a link.
type LinkResponse struct {
	ID          string       `json:"id"`
	ShortCode   string       `json:"shortCode"`
	ShortURL    string       `json:"shortUrl"`
	OriginalURL string       `json:"originalUrl"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	IsAnonymous bool         `json:"isAnonymous"`
	Status      string       `json:"status"`
	ExpiresAt   *time.Time   `json:"expiresAt,omitempty"`
	MaxClicks   *int64       `json:"maxClicks,omitempty"`
	ClickCount  int64        `json:"clickCount"`
	Safety      SafetyStatus `json:"safetyStatus"`
	Analytics   Analytics    `json:"analytics"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Handler provides HTTP handlers for link management.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // Base URL for constructing short URLs (e.g., "https://lnk.sh")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

func (h *Handler) toResponse(l Link) LinkResponse {
	return linkResponse(h.baseURL, l)
}

func linkResponse(baseURL string, l Link) LinkResponse {
	return LinkResponse{
		ID:          l.ID.String(),
		ShortCode:   l.ShortCode,
		ShortURL:    baseURL + "/" + l.ShortCode,
		OriginalURL: l.OriginalURL,
		Title:       l.Title,
		Description: l.Description,
		IsAnonymous: l.IsAnonymous,
		Status:      l.Status,
		ExpiresAt:   l.ExpiresAt,
		MaxClicks:   l.MaxClicks,
		ClickCount:  l.ClickCount,
		Safety:      l.Safety,
		Analytics:   l.Analytics,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// CreateLink handles POST /api/links for an authenticated owner.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	owner, ok := httpx.OwnerID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}
	h.create(w, r, &owner)
}

// CreateAnonymousLink handles POST /api/links/anonymous.
func (h *Handler) CreateAnonymousLink(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, nil)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, owner *uuid.UUID) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	body, ok := decodeBody[CreateLinkBody](w, r, logger)
	if !ok {
		return
	}

	link, err := h.service.Create(ctx, CreateLinkRequest{
		OriginalURL: body.URL,
		CustomCode:  body.CustomCode,
		Title:       body.Title,
		Description: body.Description,
		OwnerID:     owner,
		CreatorIP:   tracking.ClientIP(r),
		VisitorID:   tracking.VisitorID(r),
		ExpiresAt:   body.ExpiresAt,
		MaxClicks:   body.MaxClicks,
	})
	if err != nil {
		h.handleError(ctx, logger, w, err)
		return
	}

	logger.InfoContext(ctx, "link created successfully",
		"link_id", link.ID.String(),
		"short_code", link.ShortCode,
		"custom_code", body.CustomCode != "",
		"anonymous", link.IsAnonymous,
	)

	httpx.WriteJSON(w, http.StatusCreated, h.toResponse(link))
}

// ListLinks handles GET /api/links.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, _ := httpx.OwnerID(ctx)

	links, err := h.service.List(ctx, owner)
	if err != nil {
		h.handleError(ctx, h.requestLogger(r), w, err)
		return
	}

	out := make([]LinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, h.toResponse(l))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// GetLink handles GET /api/links/{id}.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	id, owner, ok := linkTarget(w, r)
	if !ok {
		return
	}

	link, err := h.service.Get(ctx, id, owner)
	if err != nil {
		h.handleError(ctx, logger, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.toResponse(link))
}

// UpdateLink handles PATCH /api/links/{id}.
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	id, owner, ok := linkTarget(w, r)
	if !ok {
		return
	}
	body, ok := decodeBody[UpdateLinkBody](w, r, logger)
	if !ok {
		return
	}

	link, err := h.service.Update(ctx, id, owner, LinkPatch(body))
	if err != nil {
		h.handleError(ctx, logger, w, err)
		return
	}

	logger.InfoContext(ctx, "link updated", "link_id", link.ID.String())
	httpx.WriteJSON(w, http.StatusOK, h.toResponse(link))
}

// DeleteLink handles DELETE /api/links/{id}.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	id, owner, ok := linkTarget(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, id, owner); err != nil {
		h.handleError(ctx, logger, w, err)
		return
	}

	logger.InfoContext(ctx, "link deleted", "link_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}

// LinkStats handles GET /api/links/{id}/stats.
func (h *Handler) LinkStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, owner, ok := linkTarget(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(ctx, id, owner)
	if err != nil {
		h.handleError(ctx, h.requestLogger(r), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

// Overview handles GET /api/stats.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := httpx.OwnerID(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	stats, err := h.service.Overview(ctx, owner)
	if err != nil {
		h.handleError(ctx, h.requestLogger(r), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	respondError(ctx, logger, w, err)
}

// respondError logs err at a level matching its kind and writes the JSON error.
func respondError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.NotFound, errx.Invalid, errx.Conflict, errx.Forbidden:
		logger.WarnContext(ctx, "link request rejected", logAttrs...)
	default:
		logger.ErrorContext(ctx, "link request failed", logAttrs...)
	}

	writeError(w, err)
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrShortCodeTaken) {
		httpx.WriteError(w, http.StatusConflict, "conflict",
			"This short code is already taken",
			map[string]string{
				"hint": "Try a different custom code or let us generate one for you",
			})
		return
	}
	httpx.WriteKindError(w, err, unsafeDetails(err))
}

func decodeBody[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	body, err := httpx.DecodeValid[T](r)
	if err == nil {
		return body, true
	}

	logger.WarnContext(r.Context(), "failed to decode request", "error", err.Error())

	var verr *httpx.ValidationError
	if errors.As(err, &verr) {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", verr.Error(), verr.Fields)
		return body, false
	}
	httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	return body, false
}

// linkTarget extracts the {id} path value and the authenticated owner.
func linkTarget(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	owner, ok := httpx.OwnerID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid link id", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return id, owner, true
}
