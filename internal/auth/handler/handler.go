package handler

import (
	"context"
	"net/http"

	"ignews-service/internal/auth"
	"ignews-service/internal/auth/provider"
	"ignews-service/internal/logger"

	"github.com/gin-gonic/gin"
)

// SignInGate decides whether a verified identity may sign in.
type SignInGate interface {
	SignIn(ctx context.Context, identity *auth.Identity) bool
}

type Handler struct {
	providers     *provider.Registry
	gate          SignInGate
	secureCookies bool
}

func NewHandler(
	registry *provider.Registry,
	gate SignInGate,
	secureCookies bool,
) *Handler {
	return &Handler{
		providers:     registry,
		gate:          gate,
		secureCookies: secureCookies,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/oauth/providers", h.listProviders)
	r.GET("/oauth/login/:provider", h.login)
	r.GET("/oauth/callback/:provider", h.callback)
}

func (h *Handler) listProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers": h.providers.Names(),
	})
}

func (h *Handler) login(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	state, err := h.generateState(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login unavailable"})
		return
	}

	codeChallenge := h.generatePKCE(c)

	c.Redirect(http.StatusFound, p.AuthCodeURL(state, codeChallenge))
}

func (h *Handler) callback(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	if !validateState(c) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "invalid state",
		})
		return
	}

	// The user declined, or the provider rejected the request.
	if errParam := c.Query("error"); errParam != "" {
		logger.Warn("oauth callback returned error", map[string]any{
			"provider": providerName,
			"error":    errParam,
			"desc":     c.Query("error_description"),
		})
		h.clearFlowCookies(c)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "authorization denied",
		})
		return
	}

	code := c.Query("code")
	if code == "" {
		logger.Error("oauth callback missing code and error", map[string]any{
			"provider": providerName,
		})
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	codeVerifier := getPKCEVerifier(c)
	if codeVerifier == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "missing pkce verifier",
		})
		return
	}

	identity, err := p.ExchangeCode(
		c.Request.Context(),
		code,
		codeVerifier,
	)
	if err != nil {
		logger.Warn("oauth code exchange failed", map[string]any{
			"provider": providerName,
			"error":    err,
		})
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "authentication failed",
		})
		return
	}

	h.clearFlowCookies(c)

	if !h.gate.SignIn(c.Request.Context(), identity) {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "sign-in refused",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "authenticated",
		"provider": identity.Provider,
		"user": gin.H{
			"email": identity.Email,
			"name":  identity.Name,
		},
	})
}
