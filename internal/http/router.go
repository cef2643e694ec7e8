package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/DmitriiSeitsman/ImageFeed/internal/config"
	"github.com/DmitriiSeitsman/ImageFeed/internal/http/handler"
	httpmiddleware "github.com/DmitriiSeitsman/ImageFeed/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware for the session surface.
func NewRouter(cfg config.Config, sessionHandler *handler.SessionHandler, logger *zap.Logger) *gin.Engine {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	oauth := r.Group("/oauth")
	{
		oauth.GET("/authorize-url", sessionHandler.AuthorizeURL)
		oauth.GET("/callback", sessionHandler.OAuthCallback)
	}

	r.GET("/session", sessionHandler.Session)
	r.GET("/profile", sessionHandler.GetProfile)
	r.GET("/profile/avatar", sessionHandler.GetAvatar)

	feed := r.Group("/feed")
	{
		feed.GET("", sessionHandler.GetFeed)
		feed.POST("/next", sessionHandler.FetchNextPage)
		feed.POST("/photos/:id/like", sessionHandler.LikePhoto)
		feed.DELETE("/photos/:id/like", sessionHandler.UnlikePhoto)
	}

	r.POST("/logout", sessionHandler.PostLogout)
	r.GET("/healthz", sessionHandler.Healthz)

	return r
}
