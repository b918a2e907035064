package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"herd/src/apperrors"
	"herd/src/types"

	"github.com/rs/zerolog"
)

const (
	pageSize = 10
	maxPage  = types.MaxListWindow / pageSize
)

type Handlers struct {
	store        types.PostStore
	limit        int
	queryTimeout time.Duration
	logger       zerolog.Logger
}

func New(store types.PostStore, limit int, queryTimeout time.Duration, logger zerolog.Logger) *Handlers {
	return &Handlers{
		store:        store,
		limit:        limit,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

type PostsPage struct {
	Name     string       `json:"name"`
	Total    int          `json:"total"`
	Posts    []types.Post `json:"posts"`
	Page     int          `json:"page"`
	LastPage int          `json:"last_page"`
	PrevPage int          `json:"prev_page,omitempty"`
	NextPage int          `json:"next_page,omitempty"`
}

// NearbyPosts returns the most recent posts for the caller's position.
// The coordinates are only echoed back; posts are not filtered by distance.
func (h *Handlers) NearbyPosts(ctx context.Context, req types.NearbyPostsRequest) (*types.NearbyPostsResponse, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	posts, err := h.store.RecentPosts(ctx, h.limit)
	if err != nil {
		return nil, err
	}

	return types.NewNearbyPostsResponse(req, posts), nil
}

// HandleNearbyPosts serves NearbyPosts over the callable protocol.
func (h *Handlers) HandleNearbyPosts(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, callableError{Error: callableErrorBody{
			Status:  apperrors.CodeInvalidRequest.Status(),
			Message: "method must be POST",
		}})
		return
	}

	data, err := decodeCallable(w, r)
	if err != nil {
		writeCallableError(w, logger, err)
		return
	}

	req, err := types.ParseNearbyPostsRequest(data)
	if err != nil {
		writeCallableError(w, logger, err)
		return
	}

	resp, err := h.NearbyPosts(r.Context(), req)
	if err != nil {
		writeCallableError(w, logger, err)
		return
	}

	logger.Debug().
		Float64("latitude", req.Latitude.Value).
		Float64("longitude", req.Longitude.Value).
		Int("posts", len(resp.Posts)).
		Msg("Served nearby posts")
	writeCallableResult(w, resp)
}

func (h *Handlers) getPosts(r *http.Request) (*PostsPage, error) {
	pageStr := r.URL.Query().Get("page")
	if pageStr == "" {
		pageStr = "1"
	}
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 || page > maxPage {
		return nil, apperrors.InvalidRequest("Invalid 'page' value: " + pageStr).WithField("page")
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	posts, total, err := h.store.GetPosts(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	lastPage := (total + pageSize - 1) / pageSize

	data := &PostsPage{
		Name:     "Posts",
		Posts:    posts,
		Total:    total,
		Page:     page,
		LastPage: lastPage,
	}

	if page > 1 {
		data.PrevPage = page - 1
	}

	if page < lastPage {
		data.NextPage = page + 1
	}

	return data, nil
}

func (h *Handlers) HandleGetPostsAPI(w http.ResponseWriter, r *http.Request) {
	data, err := h.getPosts(r)
	if err != nil {
		writeAPIError(w, h.requestLogger(r), err)
		return
	}

	writeJSON(w, http.StatusOK, data)
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logger := h.requestLogger(r)
		logger.Warn().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.queryTimeout)
}

func writeAPIError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	appErr := apperrors.From(err)
	if appErr.Code != apperrors.CodeInvalidRequest {
		logger.Error().Err(appErr.Err).Str("internal", appErr.Internal).Msg(appErr.Message)
	}
	http.Error(w, appErr.Message, appErr.Code.HTTPStatus())
}
