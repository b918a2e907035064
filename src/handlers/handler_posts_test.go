package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"herd/src/apperrors"
	"herd/src/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memStore orders posts newest first, like the real stores.
type memStore struct {
	posts    []types.Post
	err      error
	lastCtx  context.Context
	lastSize int
}

func (m *memStore) sorted() []types.Post {
	posts := append([]types.Post(nil), m.posts...)
	sort.Slice(posts, func(i, j int) bool { return posts[i].TimePosted.After(posts[j].TimePosted) })
	return posts
}

func (m *memStore) RecentPosts(ctx context.Context, limit int) ([]types.Post, error) {
	m.lastCtx, m.lastSize = ctx, limit
	if m.err != nil {
		return nil, m.err
	}
	posts := m.sorted()
	if limit < len(posts) {
		posts = posts[:limit]
	}
	return posts, nil
}

func (m *memStore) GetPosts(ctx context.Context, limit, offset int) ([]types.Post, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	posts := m.sorted()
	if offset > len(posts) {
		offset = len(posts)
	}
	end := offset + limit
	if end > len(posts) {
		end = len(posts)
	}
	return posts[offset:end], len(posts), nil
}

func (m *memStore) Ping(ctx context.Context) error { return m.err }

func makePosts(n int) []types.Post {
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	posts := make([]types.Post, n)
	for i := range posts {
		posts[i] = types.Post{
			ID:         "p" + string(rune('a'+i)),
			Text:       "post " + string(rune('a'+i)),
			TimePosted: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return posts
}

func callNearbyPosts(t *testing.T, h *Handlers, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/nearbyPosts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return rec, envelope
}

func TestHandleNearbyPosts_FewerThanLimit(t *testing.T) {
	h := New(&memStore{posts: makePosts(2)}, 3, time.Second, zerolog.Nop())

	rec, envelope := callNearbyPosts(t, h, `{"data": {"latitude": 42.50807, "longitude": -83.40217}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result types.NearbyPostsResponse
	require.NoError(t, json.Unmarshal(envelope["result"], &result))
	assert.Equal(t, "lat 42.50807, long -83.40217", result.Message)
	assert.Equal(t, []string{"post b", "post a"}, result.Posts)
	assert.Equal(t, "2", result.NumPosts)
}

func TestHandleNearbyPosts_NewestThree(t *testing.T) {
	store := &memStore{posts: makePosts(5)}
	h := New(store, 3, time.Second, zerolog.Nop())

	rec, envelope := callNearbyPosts(t, h, `{"data": {"latitude": "10.5", "longitude": "20.25"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result types.NearbyPostsResponse
	require.NoError(t, json.Unmarshal(envelope["result"], &result))
	assert.Equal(t, "lat 10.5, long 20.25", result.Message)
	assert.Equal(t, []string{"post e", "post d", "post c"}, result.Posts)
	assert.Equal(t, "3", result.NumPosts)
	assert.Equal(t, 3, store.lastSize)

	_, hasDeadline := store.lastCtx.Deadline()
	assert.True(t, hasDeadline, "store query runs under the query timeout")
}

func TestHandleNearbyPosts_EmptyStore(t *testing.T) {
	h := New(&memStore{}, 3, time.Second, zerolog.Nop())

	rec, envelope := callNearbyPosts(t, h, `{"data": {"latitude": 0, "longitude": 0}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "lat 0, long 0", "posts": [], "numPosts": "0"}`, string(envelope["result"]))
}

func TestHandleNearbyPosts_InvalidRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing latitude", `{"data": {"longitude": 1}}`, "latitude is required"},
		{"missing longitude", `{"data": {"latitude": 1}}`, "longitude is required"},
		{"missing data", `{}`, "request data is required"},
		{"not json", `latitude=1`, "request body is not valid JSON"},
		{"empty body", ``, "request body is empty"},
		{"out of range", `{"data": {"latitude": 91, "longitude": 1}}`, "latitude is out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{posts: makePosts(3)}
			h := New(store, 3, time.Second, zerolog.Nop())

			rec, envelope := callNearbyPosts(t, h, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotContains(t, envelope, "result")

			var body callableErrorBody
			require.NoError(t, json.Unmarshal(envelope["error"], &body))
			assert.Equal(t, "INVALID_ARGUMENT", body.Status)
			assert.Equal(t, tt.message, body.Message)
			assert.Nil(t, store.lastCtx, "store must not be queried")
		})
	}
}

func TestHandleNearbyPosts_StoreUnavailable(t *testing.T) {
	storeErr := apperrors.StoreUnavailable("post store is unavailable").Wrap(errors.New("connection refused"))
	h := New(&memStore{err: storeErr}, 3, time.Second, zerolog.Nop())

	rec, envelope := callNearbyPosts(t, h, `{"data": {"latitude": 1, "longitude": 2}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status": "UNAVAILABLE", "message": "post store is unavailable"}`, string(envelope["error"]))
}

func TestHandleNearbyPosts_UnclassifiedError(t *testing.T) {
	h := New(&memStore{err: errors.New("boom")}, 3, time.Second, zerolog.Nop())

	rec, envelope := callNearbyPosts(t, h, `{"data": {"latitude": 1, "longitude": 2}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status": "INTERNAL", "message": "internal error"}`, string(envelope["error"]))
}

func TestHandleNearbyPosts_Protocol(t *testing.T) {
	h := New(&memStore{}, 3, time.Second, zerolog.Nop())

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nearbyPosts", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
		assert.Contains(t, rec.Body.String(), "INVALID_ARGUMENT")
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/nearbyPosts", strings.NewReader(`{"data": {}}`))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "content type must be application/json")
	})

	t.Run("charset accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/nearbyPosts", strings.NewReader(`{"data": {"latitude": 1, "longitude": 1}}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/nearbyPosts", strings.NewReader(`{"data": {"latitude": 1, "longitude": 1}}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

		rec = httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})
}

func TestNearbyPosts_Direct(t *testing.T) {
	h := New(&memStore{posts: makePosts(4)}, 3, 0, zerolog.Nop())
	req := types.NearbyPostsRequest{
		Latitude:  types.Coordinate{Raw: "1", Value: 1},
		Longitude: types.Coordinate{Raw: "2", Value: 2},
	}

	resp, err := h.NearbyPosts(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "lat 1, long 2", resp.Message)
	assert.Len(t, resp.Posts, 3)
	assert.Equal(t, "3", resp.NumPosts)
}

func TestHandleGetPostsAPI(t *testing.T) {
	h := New(&memStore{posts: makePosts(25)}, 3, time.Second, zerolog.Nop())

	tests := []struct {
		name     string
		query    string
		page     int
		count    int
		prevPage int
		nextPage int
		first    string
	}{
		{"default page", "", 1, 10, 0, 2, "post y"},
		{"middle page", "?page=2", 2, 10, 1, 3, "post o"},
		{"last page", "?page=3", 3, 5, 2, 0, "post e"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts"+tt.query, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var page PostsPage
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
			assert.Equal(t, "Posts", page.Name)
			assert.Equal(t, 25, page.Total)
			assert.Equal(t, 3, page.LastPage)
			assert.Equal(t, tt.page, page.Page)
			assert.Equal(t, tt.prevPage, page.PrevPage)
			assert.Equal(t, tt.nextPage, page.NextPage)
			require.Len(t, page.Posts, tt.count)
			assert.Equal(t, tt.first, page.Posts[0].Text)
		})
	}
}

func TestHandleGetPostsAPI_Errors(t *testing.T) {
	t.Run("invalid page", func(t *testing.T) {
		h := New(&memStore{}, 3, time.Second, zerolog.Nop())
		for _, q := range []string{"?page=0", "?page=abc", "?page=-2"} {
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts"+q, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
			assert.Contains(t, rec.Body.String(), "Invalid 'page' value")
		}
	})

	t.Run("page past the listing window", func(t *testing.T) {
		// a store call would answer 503, so 400 means the page never reached it
		h := New(&memStore{err: apperrors.StoreUnavailable("post store is unavailable")}, 3, time.Second, zerolog.Nop())
		for _, q := range []string{"?page=2001", "?page=1000000000000000000", "?page=99999999999999999999"} {
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts"+q, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
			assert.Contains(t, rec.Body.String(), "Invalid 'page' value", q)
		}

		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts?page=2000", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "the last page in the window is served")
	})

	t.Run("store down", func(t *testing.T) {
		h := New(&memStore{err: apperrors.StoreUnavailable("post store is unavailable")}, 3, time.Second, zerolog.Nop())
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&memStore{}, 3, time.Second, zerolog.Nop()).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	down := New(&memStore{err: errors.New("down")}, 3, time.Second, zerolog.Nop())
	down.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status": "unavailable"}`, rec.Body.String())
}
