package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cdematcher/backend/internal/domain"
	"github.com/cdematcher/backend/internal/matcher"
)

// PipelineConfig holds configuration for the matching pipeline
type PipelineConfig struct {
	// Workers bounds the goroutines matching sources within one strategy.
	// Zero or less means runtime.NumCPU().
	Workers int
	Debug   bool
}

// Pipeline runs an ensemble of strategies over sources and targets and
// aggregates the results into a MatchReport. It does no I/O and keeps no
// state between runs.
type Pipeline struct {
	factory *matcher.Factory
	workers int
	debug   bool
}

// NewPipeline creates a pipeline. A nil factory means matcher.DefaultFactory().
func NewPipeline(factory *matcher.Factory, config PipelineConfig) *Pipeline {
	if factory == nil {
		factory = matcher.DefaultFactory()
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pipeline{factory: factory, workers: workers, debug: config.Debug}
}

// parseSpecs parses declarative entries; no entries means the default ensemble.
func parseSpecs(specs []domain.StrategySpec) ([]domain.StrategyConfig, error) {
	if len(specs) == 0 {
		return matcher.DefaultEnsemble(), nil
	}
	return matcher.ParseEnsemble(specs)
}

// Run realizes the declarative ensemble and matches every source against the
// targets. No specs means the default ensemble.
func (p *Pipeline) Run(ctx context.Context, sources, targets []string, specs []domain.StrategySpec) (*domain.MatchReport, error) {
	configs, err := parseSpecs(specs)
	if err != nil {
		return nil, err
	}
	return p.RunConfigs(ctx, sources, targets, configs)
}

// RunConfigs is Run for already typed configs.
// Configuration errors are returned before any matching starts. A strategy
// that fails while matching is dropped from the report and listed in
// Failures; the other strategies are unaffected.
func (p *Pipeline) RunConfigs(ctx context.Context, sources, targets []string, configs []domain.StrategyConfig) (*domain.MatchReport, error) {
	if len(configs) == 0 {
		configs = matcher.DefaultEnsemble()
	}
	matchers, err := p.factory.CreateEnsembleFromConfigs(configs)
	if err != nil {
		return nil, err
	}

	srcs := cleanList(sources)
	tgts := cleanList(targets)

	active := make([]domain.StrategyConfig, len(matchers))
	for i, m := range matchers {
		active[i] = m.Config()
	}
	fingerprint, err := Fingerprint(srcs, tgts, active)
	if err != nil {
		return nil, err
	}

	if p.debug {
		log.Printf("[PIPELINE] Running %d strategies: %d sources x %d targets (workers=%d)", len(matchers), len(srcs), len(tgts), p.workers)
	}

	outcomes := make([]strategyOutcome, len(matchers))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range matchers {
		i, m := i, m
		g.Go(func() error {
			outcomes[i] = p.runStrategy(gctx, i, m, srcs, tgts)
			return outcomes[i].err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return p.assemble(matchers, outcomes, len(srcs), len(tgts), fingerprint), nil
}

type strategyOutcome struct {
	results []domain.MatchResult
	failure *domain.MatchingError
	elapsed time.Duration
	// err is only set when the run was cancelled
	err error
}

// runStrategy indexes the targets once and spreads the sources over a bounded
// worker pool. Results land in per-source slots, so completion order never
// shows in the output.
func (p *Pipeline) runStrategy(ctx context.Context, index int, m matcher.Matcher, sources, targets []string) (out strategyOutcome) {
	start := time.Now()
	defer func() { out.elapsed = time.Since(start) }()

	idx, err := buildIndex(index, m, targets)
	if err != nil {
		out.failure = err
		return out
	}

	slots := make([][]domain.MatchResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for j, source := range sources {
		if gctx.Err() != nil {
			break
		}
		j, source := j, source
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results, err := matchSource(index, m.Kind(), idx, source)
			if err != nil {
				return err
			}
			slots[j] = results
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			out.err = ctx.Err()
			return out
		}
		var matchErr *domain.MatchingError
		if !errors.As(err, &matchErr) {
			matchErr = &domain.MatchingError{Strategy: m.Kind(), Index: index, Err: err}
		}
		out.failure = matchErr
		return out
	}

	for _, results := range slots {
		out.results = append(out.results, results...)
	}
	return out
}

func buildIndex(index int, m matcher.Matcher, targets []string) (idx matcher.Index, failure *domain.MatchingError) {
	defer func() {
		if r := recover(); r != nil {
			failure = &domain.MatchingError{Strategy: m.Kind(), Index: index, Err: fmt.Errorf("panic while indexing targets: %v", r)}
		}
	}()
	return m.Index(targets), nil
}

func matchSource(index int, kind domain.MatchType, idx matcher.Index, source string) (results []domain.MatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.MatchingError{Strategy: kind, Index: index, Source: source, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	results, err = idx.Match(source)
	if err != nil {
		var matchErr *domain.MatchingError
		if errors.As(err, &matchErr) {
			annotated := *matchErr
			annotated.Index = index
			if annotated.Source == "" {
				annotated.Source = source
			}
			return nil, &annotated
		}
		return nil, &domain.MatchingError{Strategy: kind, Index: index, Source: source, Err: err}
	}
	return results, nil
}

// assemble merges the outcomes in ensemble order into the report.
func (p *Pipeline) assemble(matchers []matcher.Matcher, outcomes []strategyOutcome, sourceCount, targetCount int, fingerprint string) *domain.MatchReport {
	report := &domain.MatchReport{
		ResultsByType: make(map[domain.MatchType][]domain.MatchResult),
		Summary: domain.Summary{
			Counts:      make(map[domain.MatchType]int),
			SourceCount: sourceCount,
			TargetCount: targetCount,
			Strategies:  make([]domain.StrategyTiming, 0, len(matchers)),
		},
		ConfigFingerprint: fingerprint,
		GeneratedAt:       time.Now().UTC(),
	}

	collected := make(map[domain.MatchType][]rankedResult)
	for i, m := range matchers {
		kind := m.Kind()
		if _, ok := report.ResultsByType[kind]; !ok {
			report.ResultsByType[kind] = []domain.MatchResult{}
		}
		out := outcomes[i]
		report.Summary.Strategies = append(report.Summary.Strategies, domain.StrategyTiming{
			Index:   i,
			Kind:    kind,
			Results: len(out.results),
			Elapsed: out.elapsed,
		})

		if out.failure != nil {
			log.Printf("[PIPELINE] Strategy %d (%s) dropped: %v", i, kind, out.failure)
			report.Failures = append(report.Failures, domain.StrategyFailure{
				Index:  i,
				Kind:   kind,
				Source: out.failure.Source,
				Target: out.failure.Target,
				Error:  out.failure.Error(),
			})
			continue
		}
		if p.debug {
			log.Printf("[PIPELINE] Strategy %d (%s): %d results in %s", i, kind, len(out.results), out.elapsed)
		}
		// the fingerprint already rendered every config, so this cannot fail
		rank, _ := canonicalConfig(m.Config())
		for _, r := range out.results {
			collected[kind] = append(collected[kind], rankedResult{result: r, rank: rank})
		}
	}

	pairs := make(map[domain.Pair]bool)
	for kind := range report.ResultsByType {
		deduped := dedupe(collected[kind])
		report.ResultsByType[kind] = deduped
		report.Summary.Counts[kind] = len(deduped)
		for _, r := range deduped {
			pairs[r.Pair()] = true
		}
	}
	report.Summary.UniquePairs = len(pairs)
	return report
}

// rankedResult tags a result with the canonical config of its strategy.
type rankedResult struct {
	result domain.MatchResult
	rank   string
}

// dedupe keeps the highest confidence result of every pair and sorts the rest.
// On equal confidence the smaller canonical config wins, so ensemble order
// never changes which result survives.
func dedupe(results []rankedResult) []domain.MatchResult {
	best := make(map[domain.Pair]int, len(results))
	kept := make([]rankedResult, 0, len(results))
	for _, r := range results {
		pair := r.result.Pair()
		pos, ok := best[pair]
		if !ok {
			best[pair] = len(kept)
			kept = append(kept, r)
			continue
		}
		cur := kept[pos]
		if r.result.Confidence > cur.result.Confidence ||
			(r.result.Confidence == cur.result.Confidence && r.rank < cur.rank) {
			kept[pos] = r
		}
	}
	out := make([]domain.MatchResult, len(kept))
	for i, r := range kept {
		out[i] = r.result
	}
	return domain.SortResults(out)
}
