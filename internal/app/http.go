package app

import (
	"context"
	"errors"
	"net/http"

	"ignews-service/internal/auth/handler"
	"ignews-service/internal/auth/provider"
	"ignews-service/internal/auth/provider/github"
	"ignews-service/internal/auth/provider/google"
	"ignews-service/internal/auth/provider/oidc"
	"ignews-service/internal/auth/resolver"
	"ignews-service/internal/config"
	"ignews-service/internal/content"
	"ignews-service/internal/logger"
	"ignews-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ErrNoProvider = errors.New("no oauth provider configured")

func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	if !cfg.HasProvider() {
		return nil, ErrNoProvider
	}

	var list []provider.OAuthProvider

	if cfg.GitHubClientID != "" {
		p, err := github.New(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURL)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}

	if cfg.GoogleClientID != "" {
		p, err := google.New(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}

	if cfg.OIDCIssuer != "" {
		p, err := oidc.New(ctx, oidc.Config{
			Issuer:       cfg.OIDCIssuer,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
		})
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}

	registry := provider.NewRegistry(list...)
	logger.Info("oauth providers registered", map[string]any{"providers": registry.Names()})

	return registry, nil
}

// setupContent returns nil when no CMS is configured; the posts route is
// then not mounted.
func setupContent(cfg config.Config, infra *Infra) (*content.Handler, error) {
	client, err := content.NewClient(content.ClientConfig{
		APIURL:       cfg.ContentAPIURL,
		AccessToken:  cfg.ContentAccessToken,
		DocumentType: cfg.ContentDocumentType,
		PageSize:     cfg.ContentPageSize,
	})
	if errors.Is(err, content.ErrNotConfigured) {
		logger.Warn("content api not configured; /api/posts disabled", nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cache content.Cache
	if infra.Redis != nil {
		cache = content.NewRedisCache(infra.Redis.Client)
	}

	return content.NewHandler(content.NewService(client, cache, cfg.ContentCacheTTL)), nil
}

func setupHTTP(ctx context.Context, cfg config.Config, infra *Infra) (*gin.Engine, error) {

	// ----------------------------
	// Dependencies
	// ----------------------------

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gate := resolver.NewGate(resolver.NewUserResolver(infra.UserService(cfg)))
	authHandler := handler.NewHandler(registry, gate, cfg.SecureCookies)

	postsHandler, err := setupContent(cfg, infra)
	if err != nil {
		return nil, err
	}

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	authHandler.RegisterRoutes(router)

	if postsHandler != nil {
		postsHandler.RegisterRoutes(router)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router, nil
}
