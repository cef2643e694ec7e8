package avatar

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
	"github.com/DmitriiSeitsman/ImageFeed/internal/eventbus"
	"github.com/DmitriiSeitsman/ImageFeed/internal/httpclient"
)

// Service resolves the avatar URL for a username and announces changes on
// the event bus. A failed fetch keeps the previously resolved URL; stale
// beats blank.
type Service struct {
	client *httpclient.Client
	bus    *eventbus.Bus
	cfg    config.Config
	logger *zap.Logger

	mu        sync.RWMutex
	avatarURL string
}

type userResponse struct {
	ProfileImage *profileImage `json:"profile_image"`
}

type profileImage struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

// NewService wires the avatar resolver.
func NewService(client *httpclient.Client, bus *eventbus.Bus, cfg config.Config, logger *zap.Logger) *Service {
	return &Service{client: client, bus: bus, cfg: cfg, logger: logger}
}

// FetchAvatarURL loads /users/{username} and keeps the medium-resolution
// avatar URL, publishing AvatarChanged on success.
func (s *Service) FetchAvatarURL(ctx context.Context, token, username string) (string, error) {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(username) == "" {
		return "", domain.ErrInvalidRequest
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.APIBaseURL+"/users/"+username, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build user request: %v", domain.ErrInvalidRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	body, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch avatar: %w", err)
	}

	var resp userResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: user response: %v", domain.ErrDecode, err)
	}
	if resp.ProfileImage == nil || resp.ProfileImage.Medium == "" {
		return "", fmt.Errorf("%w: missing profile_image", domain.ErrDecode)
	}

	s.mu.Lock()
	s.avatarURL = resp.ProfileImage.Medium
	s.mu.Unlock()

	s.bus.Publish(eventbus.Event{Kind: eventbus.AvatarChanged, URL: resp.ProfileImage.Medium})
	s.log().Debug("avatar resolved", zap.String("username", username))
	return resp.ProfileImage.Medium, nil
}

// CurrentAvatarURL returns the last successfully resolved URL, if any.
func (s *Service) CurrentAvatarURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.avatarURL
}

// ClearData forgets the resolved URL; called on logout.
func (s *Service) ClearData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avatarURL = ""
}

func (s *Service) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
