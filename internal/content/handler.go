package content

import (
	"net/http"

	"ignews-service/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	posts *Service
}

func NewHandler(posts *Service) *Handler {
	return &Handler{posts: posts}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/api/posts", h.list)
}

func (h *Handler) list(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context())
	if err != nil {
		logger.Error("list posts failed", map[string]any{"error": err})
		c.JSON(http.StatusBadGateway, gin.H{"error": "content unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}
