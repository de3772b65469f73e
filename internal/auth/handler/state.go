package handler

import (
	"net/http"
	"time"

	"ignews-service/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	stateCookieName = "__oauth_state"
	stateTTL        = 5 * time.Minute
)

func (h *Handler) generateState(c *gin.Context) (string, error) {
	state, err := utils.RandomString(32)
	if err != nil {
		return "", err
	}

	h.setFlowCookie(c, stateCookieName, state, stateTTL)
	return state, nil
}

func validateState(c *gin.Context) bool {
	stateQuery := c.Query("state")
	if stateQuery == "" {
		return false
	}

	cookie, err := c.Request.Cookie(stateCookieName)
	if err != nil {
		return false
	}

	return cookie.Value == stateQuery
}

func (h *Handler) setFlowCookie(c *gin.Context, name, value string, ttl time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// clearFlowCookies drops state and PKCE cookies once a callback is consumed.
func (h *Handler) clearFlowCookies(c *gin.Context) {
	for _, name := range []string{stateCookieName, pkceCookieName} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}
