package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/http/response"
)

var errQueryRequired = errors.New("query is required")

type Analyzer interface {
	Analyze(ctx context.Context, question string) graphrag.QueryAnalysis
}

type AnalyzeHandler struct {
	analyzer Analyzer
}

func NewAnalyzeHandler(a Analyzer) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: a}
}

// POST /analyze?query=... or a JSON body {"query": "..."}
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	q := strings.TrimSpace(c.Query("query"))
	if q == "" && c.Request.ContentLength != 0 {
		var body struct {
			Query string `json:"query"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		q = strings.TrimSpace(body.Query)
	}
	if q == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_argument", errQueryRequired)
		return
	}
	response.RespondOK(c, h.analyzer.Analyze(c.Request.Context(), q))
}
