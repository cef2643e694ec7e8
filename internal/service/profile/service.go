package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/DmitriiSeitsman/ImageFeed/internal/config"
	"github.com/DmitriiSeitsman/ImageFeed/internal/domain"
	"github.com/DmitriiSeitsman/ImageFeed/internal/httpclient"
	"github.com/DmitriiSeitsman/ImageFeed/internal/tokenstore"
)

// AvatarFetcher is the downstream resolver triggered after a profile fetch.
type AvatarFetcher interface {
	FetchAvatarURL(ctx context.Context, token, username string) (string, error)
}

// Service fetches the authenticated user's profile once per session and
// converts the wire shape into the display shape. A failed fetch leaves the
// stored profile untouched.
type Service struct {
	client  *httpclient.Client
	store   tokenstore.Store
	avatars AvatarFetcher
	cfg     config.Config
	logger  *zap.Logger

	mu       sync.Mutex
	inFlight bool
	profile  *domain.Profile
}

type profileResponse struct {
	ID           string        `json:"id"`
	Username     string        `json:"username"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Bio          string        `json:"bio"`
	ProfileImage *profileImage `json:"profile_image"`
}

type profileImage struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

// NewService wires the profile service.
func NewService(client *httpclient.Client, store tokenstore.Store, avatars AvatarFetcher, cfg config.Config, logger *zap.Logger) *Service {
	return &Service{client: client, store: store, avatars: avatars, cfg: cfg, logger: logger}
}

// FetchProfile loads /me, stores the converted profile and the username, and
// kicks off the avatar fetch as a fire-and-forget side effect.
func (s *Service) FetchProfile(ctx context.Context, token string) (domain.Profile, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Profile{}, domain.ErrInvalidRequest
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return domain.Profile{}, domain.ErrAlreadyInFlight
	}
	s.inFlight = true
	s.mu.Unlock()

	result, err := s.fetch(ctx, token)

	s.mu.Lock()
	s.inFlight = false
	if err == nil {
		s.profile = &result
	}
	s.mu.Unlock()

	if err != nil {
		return domain.Profile{}, err
	}

	s.store.SetUsername(result.Username)
	s.fetchAvatar(token, result.Username)
	return result, nil
}

func (s *Service) fetch(ctx context.Context, token string) (domain.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.APIBaseURL+"/me", nil)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("%w: build profile request: %v", domain.ErrInvalidRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	body, err := s.client.Do(req)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}

	var resp profileResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Profile{}, fmt.Errorf("%w: profile response: %v", domain.ErrDecode, err)
	}
	return convert(resp), nil
}

// fetchAvatar runs detached from the profile call; its failure never fails
// the profile fetch.
func (s *Service) fetchAvatar(token, username string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTPTimeout)
		defer cancel()
		if _, err := s.avatars.FetchAvatarURL(ctx, token, username); err != nil {
			s.log().Warn("avatar fetch failed", zap.String("username", username), zap.Error(err))
		}
	}()
}

func convert(resp profileResponse) domain.Profile {
	avatarURL := ""
	if resp.ProfileImage != nil {
		avatarURL = resp.ProfileImage.Medium
	}
	return domain.Profile{
		Username:  resp.Username,
		FirstName: resp.FirstName,
		LastName:  resp.LastName,
		Name:      strings.TrimSpace(resp.FirstName + " " + resp.LastName),
		LoginName: "@" + resp.Username,
		Bio:       resp.Bio,
		AvatarURL: avatarURL,
	}
}

// CurrentProfile returns a copy of the stored profile, or nil before the
// first successful fetch.
func (s *Service) CurrentProfile() *domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil
	}
	copied := *s.profile
	return &copied
}

// ClearData resets the profile to absent; called on logout.
func (s *Service) ClearData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
}

func (s *Service) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
