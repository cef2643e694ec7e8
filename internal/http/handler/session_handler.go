package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/DmitriiSeitsman/ImageFeed/internal/domain"
	authsvc "github.com/DmitriiSeitsman/ImageFeed/internal/service/auth"
	avatarsvc "github.com/DmitriiSeitsman/ImageFeed/internal/service/avatar"
	feedsvc "github.com/DmitriiSeitsman/ImageFeed/internal/service/feed"
	logoutsvc "github.com/DmitriiSeitsman/ImageFeed/internal/service/logout"
	profilesvc "github.com/DmitriiSeitsman/ImageFeed/internal/service/profile"
	"github.com/DmitriiSeitsman/ImageFeed/internal/tokenstore"
)

// SessionHandler exposes the session core to a presentation client over a
// local HTTP surface.
type SessionHandler struct {
	Auth    *authsvc.Service
	Profile *profilesvc.Service
	Avatar  *avatarsvc.Service
	Feed    *feedsvc.Service
	Logout  *logoutsvc.Coordinator
	Store   tokenstore.Store
	Logger  *zap.Logger
}

// NewSessionHandler creates the handler set.
func NewSessionHandler(
	auth *authsvc.Service,
	profile *profilesvc.Service,
	avatar *avatarsvc.Service,
	feed *feedsvc.Service,
	logout *logoutsvc.Coordinator,
	store tokenstore.Store,
	logger *zap.Logger,
) *SessionHandler {
	return &SessionHandler{
		Auth:    auth,
		Profile: profile,
		Avatar:  avatar,
		Feed:    feed,
		Logout:  logout,
		Store:   store,
		Logger:  logger,
	}
}

// AuthorizeURL returns the provider URL the client should open to obtain a
// code.
func (h *SessionHandler) AuthorizeURL(c *gin.Context) {
	authorizeURL, err := h.Auth.AuthorizeURL()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authorize_url": authorizeURL})
}

// OAuthCallback receives the authorization redirect, exchanges the code, and
// drives the post-auth profile fetch.
func (h *SessionHandler) OAuthCallback(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "code is required."})
		return
	}

	token, err := h.Auth.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		h.respondError(c, err)
		return
	}

	profile, err := h.Profile.FetchProfile(c.Request.Context(), token)
	if err != nil {
		// The session is established even when the profile fetch fails;
		// the client retries via GET /profile.
		h.Logger.Warn("post-auth profile fetch failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"authenticated": true})
		return
	}

	c.JSON(http.StatusOK, gin.H{"authenticated": true, "profile": profile})
}

// Session reports whether a valid session is present.
func (h *SessionHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"authenticated": h.Store.IsValid(),
		"username":      h.Store.Username(),
		"next_page":     h.Feed.NextPage(),
	})
}

// GetProfile returns the cached profile, fetching it when absent.
func (h *SessionHandler) GetProfile(c *gin.Context) {
	if profile := h.Profile.CurrentProfile(); profile != nil {
		c.JSON(http.StatusOK, profile)
		return
	}

	token := h.Store.Token()
	profile, err := h.Profile.FetchProfile(c.Request.Context(), token)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetAvatar returns the last resolved avatar URL.
func (h *SessionHandler) GetAvatar(c *gin.Context) {
	url := h.Avatar.CurrentAvatarURL()
	if url == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_resolved", "error_description": "Avatar URL not resolved yet."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar_url": url})
}

// GetFeed returns the in-memory feed.
func (h *SessionHandler) GetFeed(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"photos": h.Feed.Photos()})
}

// FetchNextPage appends the next feed page and returns it.
func (h *SessionHandler) FetchNextPage(c *gin.Context) {
	page, err := h.Feed.FetchNextPage(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"photos": page})
}

// LikePhoto confirms a like with the server.
func (h *SessionHandler) LikePhoto(c *gin.Context) {
	h.toggleLike(c, true)
}

// UnlikePhoto confirms an unlike with the server.
func (h *SessionHandler) UnlikePhoto(c *gin.Context) {
	h.toggleLike(c, false)
}

func (h *SessionHandler) toggleLike(c *gin.Context, desired bool) {
	photoID := strings.TrimSpace(c.Param("id"))
	photos, err := h.Feed.SetLike(c.Request.Context(), photoID, desired)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"photos": photos})
}

// PostLogout resets the whole session.
func (h *SessionHandler) PostLogout(c *gin.Context) {
	h.Logout.Logout()
	c.JSON(http.StatusOK, gin.H{"authenticated": false})
}

// Healthz is the liveness probe.
func (h *SessionHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SessionHandler) respondError(c *gin.Context, err error) {
	var statusErr *domain.StatusError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
	case errors.Is(err, domain.ErrDuplicateRequest):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_request", "error_description": err.Error()})
	case errors.Is(err, domain.ErrAlreadyInFlight):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "already_in_flight", "error_description": err.Error()})
	case errors.As(err, &statusErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream_status", "upstream_status": statusErr.Code})
	case errors.Is(err, domain.ErrDecode):
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream_decode", "error_description": err.Error()})
	case errors.Is(err, domain.ErrTransport):
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream_unreachable", "error_description": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": err.Error()})
	}
}
