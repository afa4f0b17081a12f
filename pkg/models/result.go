package models

// ResultFile describes one JSON file emitted by the external query
// stage, before or after consolidation.
type ResultFile struct {
	Basename    string `json:"basename"`     // canonical dataset name
	AliasSource string `json:"alias_source"` // original filename before consolidation
	Path        string `json:"path"`
}

// ConsolidationReport summarizes one consolidation run. Skipped files
// are warnings, not failures: the run has partial-success semantics.
type ConsolidationReport struct {
	Datasets []string            `json:"datasets"`          // canonical names, sorted
	Sources  map[string][]string `json:"sources"`           // canonical name -> contributing files, first-seen order
	Skipped  []SkippedFile       `json:"skipped,omitempty"` // malformed members
}

// SkippedFile records a result file dropped during consolidation.
type SkippedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}
