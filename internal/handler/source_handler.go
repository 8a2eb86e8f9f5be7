package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/bookrag/internal/pkg/response"
	"github.com/xxxsen/bookrag/internal/service"
)

type SourceHandler struct {
	sources *service.SourceService
}

func NewSourceHandler(sources *service.SourceService) *SourceHandler {
	return &SourceHandler{sources: sources}
}

func (h *SourceHandler) Get(c *gin.Context) {
	chunkID := c.Param("chunk_id")
	if chunkID == "" {
		response.Error(c, http.StatusBadRequest, "invalid", "chunk_id is required")
		return
	}
	ref, err := h.sources.Get(c.Request.Context(), chunkID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, ref)
}
