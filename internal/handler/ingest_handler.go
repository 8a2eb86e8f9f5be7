package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/bookrag/internal/model"
	"github.com/xxxsen/bookrag/internal/pkg/response"
	"github.com/xxxsen/bookrag/internal/service"
)

type IngestHandler struct {
	ingest *service.IngestService
}

func NewIngestHandler(ingest *service.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

// Start kicks off an ingestion job and replies immediately with its id.
func (h *IngestHandler) Start(c *gin.Context) {
	var req model.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request body")
		return
	}
	if req.SitemapURL == "" && len(req.URLs) == 0 {
		response.Error(c, http.StatusBadRequest, "invalid", "either sitemap_url or urls is required")
		return
	}
	rsp, err := h.ingest.Start(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, rsp)
}

// Job reports the current progress of a previously started job.
func (h *IngestHandler) Job(c *gin.Context) {
	status, err := h.ingest.Job(c.Param("job_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, status)
}
