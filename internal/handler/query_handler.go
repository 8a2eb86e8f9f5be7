package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/bookrag/internal/model"
	"github.com/xxxsen/bookrag/internal/pkg/response"
	"github.com/xxxsen/bookrag/internal/service"
)

type QueryHandler struct {
	query *service.QueryService
}

func NewQueryHandler(query *service.QueryService) *QueryHandler {
	return &QueryHandler{query: query}
}

// Query answers a question grounded in ingested content. An empty or
// whitespace-only query is rejected before any retrieval happens.
func (h *QueryHandler) Query(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusUnprocessableEntity, "invalid", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		response.Error(c, http.StatusUnprocessableEntity, "invalid", "query must not be empty")
		return
	}
	if req.SessionID == "" {
		req.SessionID = getSessionID(c)
	}
	response.Success(c, h.query.Query(c.Request.Context(), &req))
}

// Select acknowledges a user text selection and returns the id it will
// be grounded under.
func (h *QueryHandler) Select(c *gin.Context) {
	var req model.SelectedTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		response.Error(c, http.StatusBadRequest, "invalid", "text must not be empty")
		return
	}
	if strings.TrimSpace(req.SourceURL) == "" {
		response.Error(c, http.StatusBadRequest, "invalid", "source_url must not be empty")
		return
	}
	response.Success(c, h.query.SelectText(c.Request.Context(), &req))
}
