package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cdematcher/backend/internal/domain"
)

// fingerprintVersion is bumped whenever the canonical form changes, so old
// cached reports stop matching.
const fingerprintVersion = 1

// Fingerprint derives the cache key of a run from the variable lists and the
// strategy configs. Input order, duplicates and surrounding whitespace in the
// lists do not change it, and neither does the order of the configs or of
// their keys. Any parameter change does.
func Fingerprint(sources, targets []string, configs []domain.StrategyConfig) (string, error) {
	strategies := make([]string, 0, len(configs))
	for i, cfg := range configs {
		if cfg == nil {
			return "", &domain.ConfigurationError{Index: i, Reason: "missing strategy configuration"}
		}
		if err := cfg.Validate(); err != nil {
			return "", fmt.Errorf("fingerprint entry %d: %w", i, err)
		}
		canonical, err := canonicalConfig(cfg)
		if err != nil {
			return "", fmt.Errorf("fingerprint entry %d: %w", i, err)
		}
		strategies = append(strategies, canonical)
	}
	sort.Strings(strategies)

	raw := make([]json.RawMessage, len(strategies))
	for i, s := range strategies {
		raw[i] = json.RawMessage(s)
	}
	payload, err := json.Marshal(map[string]any{
		"version":    fingerprintVersion,
		"sources":    listDigest(sources),
		"targets":    listDigest(targets),
		"strategies": raw,
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// FingerprintSpecs parses declarative entries and fingerprints them.
func FingerprintSpecs(sources, targets []string, specs []domain.StrategySpec) (string, error) {
	configs, err := parseSpecs(specs)
	if err != nil {
		return "", err
	}
	return Fingerprint(sources, targets, configs)
}

// canonicalConfig renders a config as a JSON object with sorted keys.
func canonicalConfig(cfg domain.StrategyConfig) (string, error) {
	if sc, ok := cfg.(domain.SemanticConfig); ok {
		cfg = sc.Canonical()
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return "", err
	}
	fields["kind"] = string(cfg.Kind())
	// encoding/json writes map keys in sorted order
	out, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// listDigest hashes the cleaned, sorted list so only its content counts.
func listDigest(values []string) string {
	cleaned := cleanList(values)
	sort.Strings(cleaned)
	sum := sha256.Sum256([]byte(strings.Join(cleaned, "\x00")))
	return hex.EncodeToString(sum[:])
}

// cleanList trims every entry and drops blanks and repeats, keeping the first
// occurrence order.
func cleanList(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
