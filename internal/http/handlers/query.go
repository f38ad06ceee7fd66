package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/http/response"
	"github.com/yungbote/graphrag-core/internal/rag/pipeline"
	"github.com/yungbote/graphrag-core/internal/rag/ragerr"
	"github.com/yungbote/graphrag-core/internal/rag/ranking"
)

type Pipeline interface {
	Retrieve(ctx context.Context, question string, opts pipeline.Options) (graphrag.StructuredAnswer, error)
	Submit(ctx context.Context, question string, opts pipeline.Options) (string, error)
	Poll(taskID string) (pipeline.PollResult, error)
}

type QueryRequest struct {
	Question      string              `json:"question"`
	RetrievalMode string              `json:"retrieval_mode,omitempty"`
	TopK          int                 `json:"top_k,omitempty"`
	MaxHops       int                 `json:"max_hops,omitempty"`
	Documents     []graphrag.Document `json:"documents,omitempty"`
	Entities      []graphrag.Entity   `json:"entities,omitempty"`
	Ranking       *ranking.Config     `json:"ranking,omitempty"`
}

type QueryResponse struct {
	Answer           graphrag.StructuredAnswer `json:"answer"`
	RetrievalMode    pipeline.Mode             `json:"retrieval_mode"`
	ProcessingTimeMs int64                     `json:"processing_time_ms"`
}

type QueryHandler struct {
	pipe Pipeline
}

func NewQueryHandler(pipe Pipeline) *QueryHandler {
	return &QueryHandler{pipe: pipe}
}

// options validates req into pipeline options. Empty pools mean "load from the configured source".
func (req QueryRequest) options() (pipeline.Options, error) {
	var mode pipeline.Mode
	switch strings.ToLower(strings.TrimSpace(req.RetrievalMode)) {
	case "", string(pipeline.ModeVector):
		mode = pipeline.ModeVector
	case string(pipeline.ModeHybrid):
		mode = pipeline.ModeHybrid
	default:
		return pipeline.Options{}, ragerr.Invalid("http.query", "unknown retrieval_mode %q", req.RetrievalMode)
	}
	if req.TopK < 0 || req.MaxHops < 0 {
		return pipeline.Options{}, ragerr.Invalid("http.query", "top_k and max_hops must be non-negative")
	}
	return pipeline.Options{
		Documents: req.Documents,
		Entities:  req.Entities,
		Mode:      mode,
		TopK:      req.TopK,
		MaxHops:   req.MaxHops,
		Rank:      req.Ranking,
	}, nil
}

func bindQuery(c *gin.Context) (QueryRequest, pipeline.Options, bool) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondError(c, http.StatusRequestEntityTooLarge, "request_too_large", err)
			return req, pipeline.Options{}, false
		}
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return req, pipeline.Options{}, false
	}
	opts, err := req.options()
	if err != nil {
		response.RespondErr(c, err)
		return req, pipeline.Options{}, false
	}
	return req, opts, true
}

// POST /query
func (h *QueryHandler) Query(c *gin.Context) {
	req, opts, ok := bindQuery(c)
	if !ok {
		return
	}
	start := time.Now()
	ans, err := h.pipe.Retrieve(c.Request.Context(), req.Question, opts)
	if err != nil {
		_ = c.Error(err)
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, QueryResponse{
		Answer:           ans,
		RetrievalMode:    opts.Mode,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	})
}

// POST /query/async
func (h *QueryHandler) Submit(c *gin.Context) {
	req, opts, ok := bindQuery(c)
	if !ok {
		return
	}
	id, err := h.pipe.Submit(c.Request.Context(), req.Question, opts)
	if err != nil {
		_ = c.Error(err)
		response.RespondErr(c, err)
		return
	}
	c.Header("Location", strings.TrimSuffix(c.Request.URL.Path, "/")+"/"+id)
	c.JSON(http.StatusAccepted, gin.H{"task_id": id, "status": pipeline.StatusRunning})
}

// GET /query/async/:id
func (h *QueryHandler) Result(c *gin.Context) {
	res, err := h.pipe.Poll(c.Param("id"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}
