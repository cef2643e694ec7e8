package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DmitriiSeitsman/ImageFeed/internal/config"
	"github.com/DmitriiSeitsman/ImageFeed/internal/domain"
	"github.com/DmitriiSeitsman/ImageFeed/internal/eventbus"
	"github.com/DmitriiSeitsman/ImageFeed/internal/httpclient"
	"github.com/DmitriiSeitsman/ImageFeed/internal/tokenstore"
)

type feedTestHarness struct {
	service *Service
	store   *tokenstore.MemoryStore
	events  chan eventbus.Event
}

func newFeedTestHarness(t *testing.T, handlerFn http.HandlerFunc) *feedTestHarness {
	t.Helper()
	srv := httptest.NewServer(handlerFn)
	t.Cleanup(srv.Close)

	bus := eventbus.New(zap.NewNop())
	t.Cleanup(bus.Close)
	events := make(chan eventbus.Event, 8)
	bus.Subscribe(eventbus.FeedChanged, func(ev eventbus.Event) { events <- ev })

	cfg := config.Config{APIBaseURL: srv.URL, HTTPTimeout: time.Second}
	store := tokenstore.NewMemoryStore()
	store.SetToken("tok1")
	client := httpclient.New(nil, time.Second, zap.NewNop())
	return &feedTestHarness{
		service: NewService(client, store, bus, cfg, zap.NewNop()),
		store:   store,
		events:  events,
	}
}

func pageItem(id string, liked bool) map[string]any {
	return map[string]any{
		"id":            id,
		"urls":          map[string]string{"thumb": "t-" + id, "full": "f-" + id, "small": "s-" + id},
		"width":         1024,
		"height":        768,
		"created_at":    "2024-05-01T10:30:00Z",
		"description":   "photo " + id,
		"liked_by_user": liked,
	}
}

// pagedHandler serves three photos per page with ids "<page>-<n>".
func pagedHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/photos", r.URL.Path)
		require.Equal(t, "Bearer tok1", r.Header.Get("Authorization"))
		page := r.URL.Query().Get("page")
		items := []map[string]any{
			pageItem(page+"-1", false),
			pageItem(page+"-2", false),
			pageItem(page+"-3", false),
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(items))
	}
}

func TestFetchNextPage_AppendsInOrder(t *testing.T) {
	h := newFeedTestHarness(t, pagedHandler(t))

	page1, err := h.service.FetchNextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page1, 3)

	page2, err := h.service.FetchNextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page2, 3)

	photos := h.service.Photos()
	require.Len(t, photos, 6)
	ids := make([]string, 0, len(photos))
	for _, p := range photos {
		ids = append(ids, p.ID)
	}
	require.Equal(t, []string{"1-1", "1-2", "1-3", "2-1", "2-2", "2-3"}, ids)
	require.Equal(t, 3, h.service.NextPage())
}

func TestFetchNextPage_PublishesOldCount(t *testing.T) {
	h := newFeedTestHarness(t, pagedHandler(t))

	_, err := h.service.FetchNextPage(context.Background())
	require.NoError(t, err)
	_, err = h.service.FetchNextPage(context.Background())
	require.NoError(t, err)

	first := <-h.events
	require.Equal(t, eventbus.FeedChanged, first.Kind)
	require.Equal(t, 0, first.OldCount)

	second := <-h.events
	require.Equal(t, 3, second.OldCount)
}

func TestFetchNextPage_ConvertsWireShape(t *testing.T) {
	h := newFeedTestHarness(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"a","urls":{"thumb":"t","full":"f","small":"s"},"width":10,"height":20,"created_at":"2024-05-01T10:30:00Z","description":"hello","liked_by_user":true},
			{"id":"b","urls":{"thumb":"t","full":"f","small":"s"},"width":1,"height":2,"created_at":"not-a-date","liked_by_user":false}
		]`))
	})

	page, err := h.service.FetchNextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page, 2)

	require.Equal(t, "a", page[0].ID)
	require.Equal(t, 10, page[0].Width)
	require.Equal(t, 20, page[0].Height)
	require.Equal(t, "hello", page[0].Description)
	require.True(t, page[0].IsLiked)
	require.NotNil(t, page[0].CreatedAt)
	require.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC), page[0].CreatedAt.UTC())

	// Unparseable timestamp is absent, not an error; missing description
	// gets the placeholder.
	require.Nil(t, page[1].CreatedAt)
	require.Equal(t, "No description", page[1].Description)
}

func TestFetchNextPage_FailureKeepsCursor(t *testing.T) {
	var fail atomic.Bool
	h := newFeedTestHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		pagedHandler(t)(w, r)
	})

	_, err := h.service.FetchNextPage(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, h.service.NextPage())

	fail.Store(true)
	_, err = h.service.FetchNextPage(context.Background())
	var statusErr *domain.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 2, h.service.NextPage())
	require.Len(t, h.service.Photos(), 3)
}

func TestFetchNextPage_AlreadyInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	h := newFeedTestHarness(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		_, _ = w.Write([]byte(`[]`))
	})

	firstErr := make(chan error, 1)
	go func() {
		_, err := h.service.FetchNextPage(context.Background())
		firstErr <- err
	}()
	<-started

	_, err := h.service.FetchNextPage(context.Background())
	require.ErrorIs(t, err, domain.ErrAlreadyInFlight)
	require.Equal(t, 1, h.service.NextPage())

	close(release)
	require.NoError(t, <-firstErr)
	require.Equal(t, 2, h.service.NextPage())
}

func TestFetchNextPage_MissingToken(t *testing.T) {
	h := newFeedTestHarness(t, pagedHandler(t))
	h.store.Clear()

	_, err := h.service.FetchNextPage(context.Background())
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestSetLike_FlipsCurrentState(t *testing.T) {
	methods := make(chan string, 2)
	h := newFeedTestHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/photos" {
			pagedHandler(t)(w, r)
			return
		}
		methods <- r.Method
		w.WriteHeader(http.StatusCreated)
	})

	_, err := h.service.FetchNextPage(context.Background())
	require.NoError(t, err)
	target := h.service.Photos()[1]
	require.False(t, target.IsLiked)

	// Desired value is irrelevant: the request and the flip derive from
	// the current model state.
	photos, err := h.service.SetLike(context.Background(), target.ID, false)
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, <-methods)
	require.True(t, photos[1].IsLiked)

	photos, err = h.service.SetLike(context.Background(), target.ID, true)
	require.NoError(t, err)
	require.Equal(t, http.MethodDelete, <-methods)
	require.False(t, photos[1].IsLiked)
}

func TestSetLike_OnlyTargetChanges(t *testing.T) {
	h := newFeedTestHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/photos" {
			pagedHandler(t)(w, r)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	_, err := h.service.FetchNextPage(context.Background())
	require.NoError(t, err)
	before := h.service.Photos()

	after, err := h.service.SetLike(context.Background(), before[1].ID, true)
	require.NoError(t, err)

	require.Equal(t, before[0], after[0])
	require.Equal(t, before[2], after[2])
	require.True(t, after[1].IsLiked)
	flippedBack := after[1]
	flippedBack.IsLiked = false
	require.Equal(t, before[1], flippedBack)
}

func TestSetLike_FailureLeavesModelUnchanged(t *testing.T) {
	h := newFeedTestHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/photos" {
			pagedHandler(t)(w, r)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := h.service.FetchNextPage(context.Background())
	require.NoError(t, err)
	before := h.service.Photos()

	_, err = h.service.SetLike(context.Background(), before[0].ID, true)
	var statusErr *domain.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, before, h.service.Photos())
}

func TestSetLike_UnknownPhoto(t *testing.T) {
	h := newFeedTestHarness(t, pagedHandler(t))

	_, err := h.service.SetLike(context.Background(), "nope", true)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestSetLike_AlreadyInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	h := newFeedTestHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/photos" {
			pagedHandler(t)(w, r)
			return
		}
		close(started)
		<-release
		w.WriteHeader(http.StatusCreated)
	})

	_, err := h.service.FetchNextPage(context.Background())
	require.NoError(t, err)
	target := h.service.Photos()[0]

	likeErr := make(chan error, 1)
	go func() {
		_, err := h.service.SetLike(context.Background(), target.ID, true)
		likeErr <- err
	}()
	<-started

	_, err = h.service.SetLike(context.Background(), target.ID, true)
	require.ErrorIs(t, err, domain.ErrAlreadyInFlight)
	_, err = h.service.FetchNextPage(context.Background())
	require.ErrorIs(t, err, domain.ErrAlreadyInFlight)

	close(release)
	require.NoError(t, <-likeErr)
}

func TestClearData_ResetsFeedAndCursor(t *testing.T) {
	h := newFeedTestHarness(t, pagedHandler(t))

	_, err := h.service.FetchNextPage(context.Background())
	require.NoError(t, err)
	_, err = h.service.FetchNextPage(context.Background())
	require.NoError(t, err)

	h.service.ClearData()
	require.Empty(t, h.service.Photos())
	require.Equal(t, 1, h.service.NextPage())

	// Next fetch starts over from page 1 with an empty feed.
	page, err := h.service.FetchNextPage(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1-1", page[0].ID)
	require.Len(t, h.service.Photos(), 3)
}

func TestFeedLengthEqualsSumOfPageSizes(t *testing.T) {
	sizes := []int{4, 2, 5}
	var call atomic.Int64
	h := newFeedTestHarness(t, func(w http.ResponseWriter, r *http.Request) {
		n := int(call.Add(1)) - 1
		items := make([]map[string]any, 0, sizes[n])
		for i := 0; i < sizes[n]; i++ {
			items = append(items, pageItem(fmt.Sprintf("%d-%d", n, i), false))
		}
		require.NoError(t, json.NewEncoder(w).Encode(items))
	})

	total := 0
	for range sizes {
		page, err := h.service.FetchNextPage(context.Background())
		require.NoError(t, err)
		total += len(page)
	}
	require.Equal(t, 11, total)
	require.Len(t, h.service.Photos(), 11)
}
