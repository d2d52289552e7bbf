package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cdematcher/backend/internal/domain"
	"github.com/cdematcher/backend/internal/matcher"
)

// MatchServiceConfig holds configuration for the match service
type MatchServiceConfig struct {
	CacheTTL time.Duration
	// Defaults is the ensemble used when a request names no strategies.
	Defaults []domain.StrategyConfig
	Debug    bool
}

// MatchRequest matches explicit variable lists
type MatchRequest struct {
	Sources    []string              `json:"sources"`
	Targets    []string              `json:"targets"`
	Strategies []domain.StrategySpec `json:"strategies,omitempty"`
}

// DatasetMatchRequest matches the variables of two stored tables
type DatasetMatchRequest struct {
	Source     domain.DatasetRef     `json:"source"`
	Target     domain.DatasetRef     `json:"target"`
	Strategies []domain.StrategySpec `json:"strategies,omitempty"`
}

// MatchResponse is a report and whether it came from the cache
type MatchResponse struct {
	Report *domain.MatchReport `json:"report"`
	Cached bool                `json:"cached"`
}

// MatchService runs the pipeline behind the result cache, keyed by the
// config fingerprint.
//
//go:generate mockgen -destination=mocks/mock_repository.go -package=mock_usecase github.com/cdematcher/backend/internal/domain CacheRepository,DatasetRepository
type MatchService struct {
	cache    domain.CacheRepository
	datasets domain.DatasetRepository
	pipeline *Pipeline
	cacheTTL time.Duration
	defaults []domain.StrategyConfig
	debug    bool
}

// NewMatchService creates a new match service with dependencies.
// datasets may be nil when only explicit lists are matched.
func NewMatchService(
	cache domain.CacheRepository,
	datasets domain.DatasetRepository,
	pipeline *Pipeline,
	config MatchServiceConfig,
) *MatchService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 720 * time.Hour // Default 30 days
	}
	defaults := config.Defaults
	if len(defaults) == 0 {
		defaults = matcher.DefaultEnsemble()
	}
	if pipeline == nil {
		pipeline = NewPipeline(nil, PipelineConfig{Debug: config.Debug})
	}

	return &MatchService{
		cache:    cache,
		datasets: datasets,
		pipeline: pipeline,
		cacheTTL: cacheTTL,
		defaults: defaults,
		debug:    config.Debug,
	}
}

// Match returns the report for the request.
// Flow: fingerprint -> check cache -> run pipeline -> cache -> return
func (s *MatchService) Match(ctx context.Context, request *MatchRequest) (*MatchResponse, error) {
	if request == nil {
		return nil, domain.ErrInvalidRequest
	}

	configs, err := s.configsFor(request.Strategies)
	if err != nil {
		return nil, err
	}
	fingerprint, err := Fingerprint(request.Sources, request.Targets, configs)
	if err != nil {
		return nil, err
	}
	cacheKey := reportCacheKey(fingerprint)

	// Try cache first
	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		if s.debug {
			log.Printf("[MATCH] Cache hit for %s", fingerprint)
		}
		return &MatchResponse{Report: cached, Cached: true}, nil
	}

	report, err := s.pipeline.RunConfigs(ctx, request.Sources, request.Targets, configs)
	if err != nil {
		return nil, err
	}

	// Log but don't fail if caching fails
	if err := s.setInCache(ctx, cacheKey, report); err != nil {
		log.Printf("[MATCH] Failed to cache report %s: %v", fingerprint, err)
	}

	return &MatchResponse{Report: report, Cached: false}, nil
}

// MatchDatasets loads both tables, extracts their variables and matches them.
func (s *MatchService) MatchDatasets(ctx context.Context, request *DatasetMatchRequest) (*MatchResponse, error) {
	if request == nil {
		return nil, domain.ErrInvalidRequest
	}
	sources, err := s.loadVariables(ctx, request.Source)
	if err != nil {
		return nil, fmt.Errorf("source dataset: %w", err)
	}
	targets, err := s.loadVariables(ctx, request.Target)
	if err != nil {
		return nil, fmt.Errorf("target dataset: %w", err)
	}
	if s.debug {
		log.Printf("[MATCH] %s/%s: %d variables, %s/%s: %d variables",
			request.Source.Collection, request.Source.Name, len(sources),
			request.Target.Collection, request.Target.Name, len(targets))
	}
	return s.Match(ctx, &MatchRequest{Sources: sources, Targets: targets, Strategies: request.Strategies})
}

// Report returns the cached report of a fingerprint.
func (s *MatchService) Report(ctx context.Context, fingerprint string) (*domain.MatchReport, error) {
	if fingerprint == "" {
		return nil, domain.ErrInvalidRequest
	}
	report, err := s.getFromCache(ctx, reportCacheKey(fingerprint))
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			return nil, domain.ErrReportNotFound
		}
		return nil, err
	}
	return report, nil
}

// Export checks every selection against the cached report and returns the
// two-column mapping. Confidence and match type are taken from the report.
func (s *MatchService) Export(ctx context.Context, fingerprint string, selections []domain.Pair) ([]domain.MappingRow, error) {
	report, err := s.Report(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	curation, err := NewCuration()
	if err != nil {
		return nil, err
	}
	for _, pair := range selections {
		result, ok := report.Find(pair)
		if !ok {
			return nil, fmt.Errorf("%w: %q -> %q is not in report %s", domain.ErrInvalidRequest, pair.Source, pair.Target, fingerprint)
		}
		curation.Accept(result)
	}
	return curation.Export()
}

// Datasets lists the tables of a collection.
func (s *MatchService) Datasets(ctx context.Context, collection string) ([]string, error) {
	if s.datasets == nil {
		return nil, fmt.Errorf("%w: no dataset store configured", domain.ErrStorageFailure)
	}
	if !knownCollection(collection) {
		return nil, fmt.Errorf("%w: unknown collection %q", domain.ErrInvalidRequest, collection)
	}
	return s.datasets.List(ctx, collection)
}

func (s *MatchService) loadVariables(ctx context.Context, ref domain.DatasetRef) ([]string, error) {
	if s.datasets == nil {
		return nil, fmt.Errorf("%w: no dataset store configured", domain.ErrStorageFailure)
	}
	if !knownCollection(ref.Collection) || ref.Name == "" {
		return nil, fmt.Errorf("%w: dataset %q in collection %q", domain.ErrInvalidRequest, ref.Name, ref.Collection)
	}
	table, err := s.datasets.Load(ctx, ref.Collection, ref.Name)
	if err != nil {
		return nil, err
	}
	return ExtractVariables(table, ref.Extract)
}

func knownCollection(collection string) bool {
	for _, c := range domain.Collections() {
		if c == collection {
			return true
		}
	}
	return false
}

func (s *MatchService) configsFor(specs []domain.StrategySpec) ([]domain.StrategyConfig, error) {
	if len(specs) == 0 {
		return s.defaults, nil
	}
	return matcher.ParseEnsemble(specs)
}

// reportCacheKey is the cache key of a report.
// Format: "report:{fingerprint}"
func reportCacheKey(fingerprint string) string {
	return "report:" + fingerprint
}

// getFromCache retrieves a report from cache
func (s *MatchService) getFromCache(ctx context.Context, key string) (*domain.MatchReport, error) {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var report domain.MatchReport
	if err := json.Unmarshal(value, &report); err != nil {
		log.Printf("[CACHE] Dropping unreadable entry %s: %v", key, err)
		return nil, domain.ErrCacheMiss
	}
	return &report, nil
}

// setInCache stores a report in cache
func (s *MatchService) setInCache(ctx context.Context, key string, report *domain.MatchReport) error {
	value, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, value, s.cacheTTL)
}
