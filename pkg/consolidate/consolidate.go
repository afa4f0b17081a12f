// Package consolidate collapses variant-suffixed JSON result files
// into one canonical file per logical dataset.
//
// The external query stage names its output <Dataset>[_<variant>].json;
// consolidation strips the variant suffix and merges files that map to
// the same canonical dataset name.
package consolidate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/omlboard/omlboard/pkg/models"
)

// DefaultVariantSuffixes are the variant suffixes emitted by the stock
// query toolchain. The list is configuration, not behavior: callers may
// replace it without touching the merge logic.
var DefaultVariantSuffixes = []string{"main", "testopt", "opt", "test"}

type Consolidator struct {
	suffixes []string
	logger   *slog.Logger
}

func NewConsolidator(logger *slog.Logger, variantSuffixes ...string) *Consolidator {
	if len(variantSuffixes) == 0 {
		variantSuffixes = DefaultVariantSuffixes
	}

	return &Consolidator{
		suffixes: variantSuffixes,
		logger:   logger.With("module", "consolidate"),
	}
}

// CanonicalName derives the canonical dataset name from a result file
// basename by stripping the extension and a known variant suffix.
func (c *Consolidator) CanonicalName(basename string) string {
	name := strings.TrimSuffix(basename, filepath.Ext(basename))

	idx := strings.LastIndex(name, "_")
	if idx <= 0 {
		return name
	}

	variant := name[idx+1:]
	for _, suffix := range c.suffixes {
		if variant == suffix {
			return name[:idx]
		}
	}

	return name
}

// Consolidate merges every *.json file in srcDir into dstDir, one file
// per canonical dataset name. Files are processed in sorted basename
// order so the merge is deterministic regardless of filesystem
// iteration order. Malformed members are skipped with a warning rather
// than aborting the run.
func (c *Consolidator) Consolidate(srcDir, dstDir string) (*models.ConsolidationReport, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory %s: %w", srcDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	// Group by canonical name, preserving first-seen group order.
	groups := make(map[string][]string)
	order := make([]string, 0, len(names))

	for _, name := range names {
		canonical := c.CanonicalName(name)
		if _, seen := groups[canonical]; !seen {
			order = append(order, canonical)
		}

		groups[canonical] = append(groups[canonical], name)
	}

	err = os.MkdirAll(dstDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create consolidated directory %s: %w", dstDir, err)
	}

	report := &models.ConsolidationReport{
		Sources: make(map[string][]string),
	}

	for _, canonical := range order {
		members := groups[canonical]

		written, skipped, err := c.consolidateGroup(srcDir, dstDir, canonical, members)
		if err != nil {
			return nil, err
		}

		report.Skipped = append(report.Skipped, skipped...)

		if written {
			report.Datasets = append(report.Datasets, canonical)
			report.Sources[canonical] = usable(members, skipped)
		}
	}

	sort.Strings(report.Datasets)

	return report, nil
}

// consolidateGroup writes dstDir/<canonical>.json from the group's
// members. Single-member groups are copied verbatim, which keeps
// consolidation idempotent at the byte level.
func (c *Consolidator) consolidateGroup(srcDir, dstDir, canonical string, members []string) (bool, []models.SkippedFile, error) {
	var skipped []models.SkippedFile

	type member struct {
		name  string
		raw   []byte
		value any
	}

	valid := make([]member, 0, len(members))

	for _, name := range members {
		raw, err := os.ReadFile(filepath.Join(srcDir, name))
		if err != nil {
			return false, nil, fmt.Errorf("failed to read result file %s: %w", name, err)
		}

		var value any

		err = json.Unmarshal(raw, &value)
		if err != nil {
			c.logger.Warn("Skipping malformed result file", "file", name, "error", err)
			skipped = append(skipped, models.SkippedFile{Name: name, Reason: err.Error()})

			continue
		}

		valid = append(valid, member{name: name, raw: raw, value: value})
	}

	if len(valid) == 0 {
		return false, skipped, nil
	}

	dstPath := filepath.Join(dstDir, canonical+".json")

	if len(valid) == 1 {
		err := os.WriteFile(dstPath, valid[0].raw, 0o644)
		if err != nil {
			return false, skipped, fmt.Errorf("failed to write %s: %w", dstPath, err)
		}

		return true, skipped, nil
	}

	values := make([]any, 0, len(valid))
	vnames := make([]string, 0, len(valid))

	for _, m := range valid {
		values = append(values, m.value)
		vnames = append(vnames, m.name)
	}

	merged, mergeSkipped := mergeValues(values, vnames)
	for _, s := range mergeSkipped {
		c.logger.Warn("Skipping result file during merge", "file", s.Name, "reason", s.Reason)
	}

	skipped = append(skipped, mergeSkipped...)

	out, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return false, skipped, fmt.Errorf("failed to encode merged dataset %s: %w", canonical, err)
	}

	out = append(out, '\n')

	err = os.WriteFile(dstPath, out, 0o644)
	if err != nil {
		return false, skipped, fmt.Errorf("failed to write %s: %w", dstPath, err)
	}

	return true, skipped, nil
}

// usable filters a member list down to the files that contributed.
func usable(members []string, skipped []models.SkippedFile) []string {
	bad := make(map[string]struct{}, len(skipped))
	for _, s := range skipped {
		bad[s.Name] = struct{}{}
	}

	out := make([]string, 0, len(members))

	for _, name := range members {
		if _, ok := bad[name]; !ok {
			out = append(out, name)
		}
	}

	return out
}
