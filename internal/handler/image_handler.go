package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"swapstyle-service/internal/blobstore"
)

// ImageHandler serves item images back out of the blob store.
type ImageHandler struct {
	Blobs blobstore.Store
}

func (h *ImageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/images/:id", h.Download)
}

// GET /api/images/:id
func (h *ImageHandler) Download(c *gin.Context) {
	data, err := h.Blobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}
