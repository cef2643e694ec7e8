package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/DmitriiSeitsman/ImageFeed/internal/config"
	"github.com/DmitriiSeitsman/ImageFeed/internal/domain"
	"github.com/DmitriiSeitsman/ImageFeed/internal/eventbus"
	"github.com/DmitriiSeitsman/ImageFeed/internal/httpclient"
	"github.com/DmitriiSeitsman/ImageFeed/internal/tokenstore"
)

// createdAtLayout is the server timestamp format for photo pages.
const createdAtLayout = "2006-01-02T15:04:05Z"

// defaultDescription replaces an absent photo description.
const defaultDescription = "No description"

// Service owns the in-memory photo feed: paginated fetches append pages in
// response order, and like toggling replaces the affected element with a
// flipped copy. At most one paginating or mutating call is in flight per
// instance; overlapping calls fail fast with ErrAlreadyInFlight.
//
// Photo ids are assumed unique across pages; the server guarantees this and
// no client-side dedup is performed.
type Service struct {
	client *httpclient.Client
	store  tokenstore.Store
	bus    *eventbus.Bus
	cfg    config.Config
	logger *zap.Logger

	mu       sync.Mutex
	inFlight bool
	photos   []domain.Photo
	nextPage int
}

type photoResponse struct {
	ID          string    `json:"id"`
	URLs        photoURLs `json:"urls"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CreatedAt   string    `json:"created_at"`
	Description *string   `json:"description"`
	LikedByUser bool      `json:"liked_by_user"`
}

type photoURLs struct {
	Thumb string `json:"thumb"`
	Full  string `json:"full"`
	Small string `json:"small"`
}

// NewService wires the feed service with an empty feed and cursor at page 1.
func NewService(client *httpclient.Client, store tokenstore.Store, bus *eventbus.Bus, cfg config.Config, logger *zap.Logger) *Service {
	return &Service{client: client, store: store, bus: bus, cfg: cfg, logger: logger, nextPage: 1}
}

// FetchNextPage loads the page at the current cursor and appends it to the
// feed. The cursor advances only on success. Returns the fetched page.
func (s *Service) FetchNextPage(ctx context.Context) ([]domain.Photo, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, domain.ErrAlreadyInFlight
	}
	token := s.store.Token()
	if token == "" {
		s.mu.Unlock()
		return nil, domain.ErrInvalidRequest
	}
	page := s.nextPage
	s.inFlight = true
	s.mu.Unlock()

	ctx, span := otel.Tracer("imagefeed/feed").Start(ctx, "feed.fetch_next_page")
	span.SetAttributes(attribute.Int("page", page))
	defer span.End()

	photos, err := s.fetchPage(ctx, token, page)

	s.mu.Lock()
	oldCount := len(s.photos)
	if err == nil {
		s.photos = append(s.photos, photos...)
		s.nextPage++
	}
	s.inFlight = false
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	s.bus.Publish(eventbus.Event{Kind: eventbus.FeedChanged, OldCount: oldCount})
	s.log().Info("page appended", zap.Int("page", page), zap.Int("photos", len(photos)))
	return photos, nil
}

func (s *Service) fetchPage(ctx context.Context, token string, page int) ([]domain.Photo, error) {
	pageURL, err := url.Parse(s.cfg.APIBaseURL + "/photos")
	if err != nil {
		return nil, fmt.Errorf("%w: parse photos url: %v", domain.ErrInvalidRequest, err)
	}
	params := pageURL.Query()
	params.Set("page", strconv.Itoa(page))
	pageURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build photos request: %v", domain.ErrInvalidRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	body, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}

	var items []photoResponse
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: photos response: %v", domain.ErrDecode, err)
	}

	photos := make([]domain.Photo, 0, len(items))
	for _, item := range items {
		photos = append(photos, s.convert(item))
	}
	return photos, nil
}

func (s *Service) convert(item photoResponse) domain.Photo {
	var createdAt *time.Time
	if parsed, err := time.Parse(createdAtLayout, item.CreatedAt); err == nil {
		createdAt = &parsed
	} else if item.CreatedAt != "" {
		// Absent timestamp, not an error.
		s.log().Debug("unparseable created_at", zap.String("photo_id", item.ID), zap.String("created_at", item.CreatedAt))
	}

	description := defaultDescription
	if item.Description != nil && strings.TrimSpace(*item.Description) != "" {
		description = *item.Description
	}

	return domain.Photo{
		ID:          item.ID,
		Width:       item.Width,
		Height:      item.Height,
		CreatedAt:   createdAt,
		Description: description,
		ThumbURL:    item.URLs.Thumb,
		FullURL:     item.URLs.Full,
		IsLiked:     item.LikedByUser,
	}
}

// SetLike confirms a like toggle with the server and flips the current
// recorded state of the photo. The HTTP method is chosen from the model's
// present state, not from desired: POST likes a photo that is un-liked,
// DELETE un-likes one that is liked. The returned slice is the post-toggle
// feed; on failure the feed is untouched.
func (s *Service) SetLike(ctx context.Context, photoID string, desired bool) ([]domain.Photo, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, domain.ErrAlreadyInFlight
	}
	token := s.store.Token()
	if token == "" {
		s.mu.Unlock()
		return nil, domain.ErrInvalidRequest
	}
	index := s.indexOfLocked(photoID)
	if index < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: unknown photo id %q", domain.ErrInvalidRequest, photoID)
	}
	currentlyLiked := s.photos[index].IsLiked
	s.inFlight = true
	s.mu.Unlock()

	if desired == currentlyLiked {
		s.log().Debug("desired like state already recorded, toggling anyway",
			zap.String("photo_id", photoID), zap.Bool("liked", currentlyLiked))
	}

	method := http.MethodPost
	if currentlyLiked {
		method = http.MethodDelete
	}

	err := s.sendLike(ctx, token, method, photoID)

	s.mu.Lock()
	var snapshot []domain.Photo
	if err == nil {
		if idx := s.indexOfLocked(photoID); idx >= 0 {
			flipped := s.photos[idx]
			flipped.IsLiked = !flipped.IsLiked
			s.photos[idx] = flipped
		}
		snapshot = append([]domain.Photo(nil), s.photos...)
	}
	s.inFlight = false
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *Service) sendLike(ctx context.Context, token, method, photoID string) error {
	req, err := http.NewRequestWithContext(ctx, method, s.cfg.APIBaseURL+"/photos/"+photoID+"/like", nil)
	if err != nil {
		return fmt.Errorf("%w: build like request: %v", domain.ErrInvalidRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	// Body ignored beyond the status code.
	if _, err := s.client.Do(req); err != nil {
		return fmt.Errorf("toggle like: %w", err)
	}
	return nil
}

func (s *Service) indexOfLocked(photoID string) int {
	for i, photo := range s.photos {
		if photo.ID == photoID {
			return i
		}
	}
	return -1
}

// Photos returns a read-only copy of the feed in server page order.
func (s *Service) Photos() []domain.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Photo(nil), s.photos...)
}

// NextPage exposes the pagination cursor; useful for the session endpoint.
func (s *Service) NextPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextPage
}

// ClearData empties the feed and resets the cursor to page 1.
func (s *Service) ClearData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos = nil
	s.nextPage = 1
}

func (s *Service) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
