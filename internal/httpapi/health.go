package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleHealth reports liveness plus a snapshot of the configured limits
// and loaded pricing table size. There's no single external dependency
// whose health is worth probing here — the LM providers are called
// per-request and their failures surface as node_failed events, not as a
// liveness signal.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"limits": gin.H{
			"max_context_size":    s.Limits.MaxContextSize,
			"default_chunk_size":  s.Limits.DefaultChunkSize,
			"max_recursion_depth": s.Limits.MaxRecursionDepth,
			"execution_timeout_s": s.Limits.ExecutionTimeout.Seconds(),
			"default_model":       s.Limits.DefaultModel,
		},
		"pricing_models_loaded": s.Pricing.Len(),
	})
}
