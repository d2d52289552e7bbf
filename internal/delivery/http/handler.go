package http

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cdematcher/backend/internal/domain"
	"github.com/cdematcher/backend/internal/matcher"
	"github.com/cdematcher/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	matchService *usecase.MatchService
	factory      *matcher.Factory
}

// NewHandler creates a new HTTP handler. A nil factory lists the built-in
// strategies.
func NewHandler(matchService *usecase.MatchService, factory *matcher.Factory) *Handler {
	if factory == nil {
		factory = matcher.DefaultFactory()
	}
	return &Handler{
		matchService: matchService,
		factory:      factory,
	}
}

// ExportRequest carries the curator's accepted pairs
type ExportRequest struct {
	Selections []domain.Pair `json:"selections"`
}

type conceptEntry struct {
	Name     string   `json:"name"`
	Variants []string `json:"variants"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "cdematcher-backend",
		"version": "1.0.0",
	})
}

// Match runs the ensemble over explicit source and target lists
func (h *Handler) Match(c *gin.Context) {
	if !h.serviceReady(c) {
		return
	}

	var req usecase.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.matchService.Match(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondReport(c, resp)
}

// MatchDatasets runs the ensemble over the variables of two stored tables
func (h *Handler) MatchDatasets(c *gin.Context) {
	if !h.serviceReady(c) {
		return
	}

	var req usecase.DatasetMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.matchService.MatchDatasets(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondReport(c, resp)
}

// GetReport returns a cached report by its fingerprint
func (h *Handler) GetReport(c *gin.Context) {
	if !h.serviceReady(c) {
		return
	}

	report, err := h.matchService.Report(c.Request.Context(), c.Param("fingerprint"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ExportReport writes the accepted pairs of a report as a CDE,Variable CSV.
// ?format=json returns the rows as JSON instead.
func (h *Handler) ExportReport(c *gin.Context) {
	if !h.serviceReady(c) {
		return
	}

	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	fingerprint := c.Param("fingerprint")
	rows, err := h.matchService.Export(c.Request.Context(), fingerprint, req.Selections)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, gin.H{"mappings": rows})
		return
	}

	csv, err := usecase.MappingCSV(rows)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="cde_mapping_%s.csv"`, shortFingerprint(fingerprint)))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(csv))
}

// ListMatchers lists the registered strategies with their defaults
func (h *Handler) ListMatchers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"matchers": h.factory.Available()})
}

// ListConcepts returns the built-in semantic concept table
func (h *Handler) ListConcepts(c *gin.Context) {
	concepts := matcher.BuiltinConcepts()
	entries := make([]conceptEntry, 0, len(concepts))
	for _, name := range matcher.ConceptNames(concepts) {
		entries = append(entries, conceptEntry{Name: name, Variants: concepts[name]})
	}
	c.JSON(http.StatusOK, gin.H{"concepts": entries})
}

// ListDatasets lists the tables of a collection
func (h *Handler) ListDatasets(c *gin.Context) {
	if !h.serviceReady(c) {
		return
	}

	collection := c.Param("collection")
	names, err := h.matchService.Datasets(c.Request.Context(), collection)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"collection": collection,
		"datasets":   names,
	})
}

func (h *Handler) serviceReady(c *gin.Context) bool {
	if h.matchService != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error": "match service not configured",
		"code":  "unavailable",
	})
	return false
}

func respondReport(c *gin.Context, resp *usecase.MatchResponse) {
	if resp.Cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.JSON(http.StatusOK, resp)
}

// respondBindError maps a request body that failed to decode. Strategy
// entries decode through domain.StrategySpec, so a bad entry surfaces here
// as a configuration error.
func respondBindError(c *gin.Context, err error) {
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "invalid request body: " + err.Error(),
		"code":  "invalid_request",
	})
}

// respondError maps domain errors onto status codes
func respondError(c *gin.Context, err error) {
	var cfgErr *domain.ConfigurationError
	var conflictErr *domain.ConflictError

	switch {
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"code":  "invalid_configuration",
			"details": gin.H{
				"kind":  cfgErr.Kind,
				"index": cfgErr.Index,
				"key":   cfgErr.Key,
			},
		})
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"code":  "invalid_request",
		})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":   err.Error(),
			"code":    "unresolved_conflicts",
			"sources": conflictErr.Sources,
		})
	case errors.Is(err, domain.ErrReportNotFound), errors.Is(err, domain.ErrDatasetNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": err.Error(),
			"code":  "not_found",
		})
	default:
		log.Printf("[HTTP] %s %s failed (request %s): %v", c.Request.Method, c.FullPath(), c.GetString(requestIDKey), err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
			"code":  "internal",
		})
	}
}

func shortFingerprint(fingerprint string) string {
	fingerprint = strings.TrimSpace(fingerprint)
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}
