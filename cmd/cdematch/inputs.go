package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cdematcher/backend/internal/domain"
	"github.com/cdematcher/backend/internal/infrastructure/storage"
	"github.com/cdematcher/backend/internal/matcher"
	"github.com/cdematcher/backend/internal/usecase"
)

// inputOptions are the flags shared by run and fingerprint
type inputOptions struct {
	source       string
	target       string
	sourceMethod string
	sourceColumn string
	targetMethod string
	targetColumn string

	strategies []string
	threshold  float64
	algorithm  string
	maxResults int
}

func (o *inputOptions) register(cmd *cobra.Command) {
	fuzzy := domain.DefaultFuzzyConfig()

	flags := cmd.Flags()
	flags.StringVar(&o.source, "source", "", "CSV file holding the variables to map")
	flags.StringVar(&o.target, "target", "", "CSV file holding the CDE dictionary")
	flags.StringVar(&o.sourceMethod, "source-method", string(domain.ExtractColumns), "How to read source variables: columns or column_values")
	flags.StringVar(&o.sourceColumn, "source-column", "", "Source column for column_values")
	flags.StringVar(&o.targetMethod, "target-method", string(domain.ExtractColumnValues), "How to read CDE items: columns or column_values")
	flags.StringVar(&o.targetColumn, "target-column", "Item", "Target column for column_values")
	flags.StringSliceVar(&o.strategies, "strategies", []string{"exact", "fuzzy", "semantic"}, "Strategies to run, in order")
	flags.Float64Var(&o.threshold, "threshold", fuzzy.Threshold, "Fuzzy similarity threshold (0.0-1.0)")
	flags.StringVar(&o.algorithm, "algorithm", string(fuzzy.Algorithm), "Fuzzy algorithm: ratio, partial_ratio, token_sort_ratio or token_set_ratio")
	flags.IntVar(&o.maxResults, "max-results", 0, "Keep at most this many fuzzy matches per source (0 keeps all)")

	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")
}

// load reads both files and extracts their variable lists.
func (o *inputOptions) load() (sources, targets []string, err error) {
	sources, err = readVariables(o.source, o.sourceMethod, o.sourceColumn)
	if err != nil {
		return nil, nil, fmt.Errorf("source: %w", err)
	}
	targets, err = readVariables(o.target, o.targetMethod, o.targetColumn)
	if err != nil {
		return nil, nil, fmt.Errorf("target: %w", err)
	}
	return sources, targets, nil
}

// ensemble turns the strategy flags into validated configs.
func (o *inputOptions) ensemble() ([]domain.StrategyConfig, error) {
	if len(o.strategies) == 0 {
		return nil, errors.New("at least one strategy is required")
	}
	specs := make([]domain.StrategySpec, 0, len(o.strategies))
	for _, kind := range o.strategies {
		kind = strings.TrimSpace(kind)
		flat := map[string]any{"kind": kind}
		if kind == string(domain.MatchTypeFuzzy) {
			flat["threshold"] = o.threshold
			flat["algorithm"] = o.algorithm
			flat["max_results"] = o.maxResults
		}
		spec, err := domain.SpecFromMap(flat)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return matcher.ParseEnsemble(specs)
}

func readVariables(path, method, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := storage.ParseTable(filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	return usecase.ExtractVariables(table, domain.VariableSource{
		Method: domain.ExtractionMethod(method),
		Column: column,
	})
}
