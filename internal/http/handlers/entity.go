package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/graphrag-core/internal/http/response"
	"github.com/yungbote/graphrag-core/internal/rag/graph"
)

const (
	defaultRelatedHops    = 2
	maxRelatedHops        = 5
	defaultRelatedResults = 10
	maxRelatedResults     = 200
)

type RelatedFinder interface {
	MultiHop(ctx context.Context, start string, maxHops, maxResults int) []graph.Hop
}

type EntityHandler struct {
	graph RelatedFinder
}

func NewEntityHandler(g RelatedFinder) *EntityHandler {
	return &EntityHandler{graph: g}
}

// GET /entities/:name/related?maxHops=2&maxResults=10
func (h *EntityHandler) Related(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("entity name is required"))
		return
	}
	hops, err := intParam(c, "maxHops", defaultRelatedHops, 1, maxRelatedHops)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_argument", err)
		return
	}
	limit, err := intParam(c, "maxResults", defaultRelatedResults, 1, maxRelatedResults)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_argument", err)
		return
	}
	response.RespondOK(c, gin.H{
		"entity":  name,
		"related": h.graph.MultiHop(c.Request.Context(), name, hops, limit),
	})
}

func intParam(c *gin.Context, key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, errors.New(key + " must be an integer in [" + strconv.Itoa(lo) + ", " + strconv.Itoa(hi) + "]")
	}
	return v, nil
}
