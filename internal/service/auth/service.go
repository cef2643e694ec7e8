package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/DmitriiSeitsman/ImageFeed/internal/config"
	"github.com/DmitriiSeitsman/ImageFeed/internal/domain"
	"github.com/DmitriiSeitsman/ImageFeed/internal/httpclient"
	"github.com/DmitriiSeitsman/ImageFeed/internal/tokenstore"
)

// Service drives the OAuth2 authorization-code exchange. At most one
// exchange is outstanding: submitting a new code cancels the previous call
// and its eventual completion is dropped. A code equal to the immediately
// preceding submission is rejected without touching the network.
type Service struct {
	client *httpclient.Client
	store  tokenstore.Store
	cfg    config.Config
	logger *zap.Logger

	mu         sync.Mutex
	lastCode   string
	generation uint64
	cancel     context.CancelFunc
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at,omitempty"`
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
}

// NewService wires the auth session.
func NewService(client *httpclient.Client, store tokenstore.Store, cfg config.Config, logger *zap.Logger) *Service {
	return &Service{client: client, store: store, cfg: cfg, logger: logger}
}

// AuthorizeURL builds the provider authorization URL the presentation layer
// should open to obtain a code.
func (s *Service) AuthorizeURL() (string, error) {
	authorizeURL, err := url.Parse(s.cfg.AuthBaseURL + "/oauth/authorize")
	if err != nil {
		return "", fmt.Errorf("%w: parse authorize url: %v", domain.ErrInvalidRequest, err)
	}
	params := authorizeURL.Query()
	params.Set("client_id", s.cfg.AccessKey)
	params.Set("redirect_uri", s.cfg.RedirectURI)
	params.Set("response_type", "code")
	// Scopes are space-delimited; Encode renders the separator as "+".
	params.Set("scope", strings.Join(s.cfg.Scopes, " "))
	authorizeURL.RawQuery = params.Encode()
	return authorizeURL.String(), nil
}

// ExchangeCode swaps the authorization code for a bearer token and persists
// it together with the username from the token response.
func (s *Service) ExchangeCode(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", domain.ErrInvalidRequest
	}

	s.mu.Lock()
	if code == s.lastCode {
		s.mu.Unlock()
		return "", domain.ErrDuplicateRequest
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	generation := s.generation
	s.lastCode = code
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	ctx, span := otel.Tracer("imagefeed/auth").Start(ctx, "auth.exchange_code")
	defer span.End()

	req, err := s.makeTokenRequest(ctx, code)
	if err != nil {
		return "", err
	}

	body, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: token response: %v", domain.ErrDecode, err)
	}
	if strings.TrimSpace(resp.AccessToken) == "" {
		return "", fmt.Errorf("%w: empty access_token", domain.ErrDecode)
	}

	s.mu.Lock()
	stale := generation != s.generation
	if !stale {
		s.cancel = nil
	}
	s.mu.Unlock()
	if stale {
		// A newer exchange superseded this one while it was in flight.
		return "", context.Canceled
	}

	s.store.SetToken(resp.AccessToken)
	s.store.SetUsername(resp.Username)
	s.log().Info("token exchanged", zap.String("username", resp.Username))
	return resp.AccessToken, nil
}

func (s *Service) makeTokenRequest(ctx context.Context, code string) (*http.Request, error) {
	tokenURL, err := url.Parse(s.cfg.AuthBaseURL + "/oauth/token")
	if err != nil {
		return nil, fmt.Errorf("%w: parse token url: %v", domain.ErrInvalidRequest, err)
	}
	params := tokenURL.Query()
	params.Set("client_id", s.cfg.AccessKey)
	params.Set("client_secret", s.cfg.SecretKey)
	params.Set("redirect_uri", s.cfg.RedirectURI)
	params.Set("code", code)
	params.Set("grant_type", "authorization_code")
	tokenURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build token request: %v", domain.ErrInvalidRequest, err)
	}
	return req, nil
}

func (s *Service) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
