package consolidate

import (
	"encoding/json"

	"github.com/omlboard/omlboard/pkg/models"
)

// mergeValues merges parsed JSON documents that encode the same logical
// dataset. The shape of the first document decides the merge strategy;
// later documents of a different shape are skipped.
//
//   - arrays of records: concatenated in first-seen order, exact
//     duplicates removed
//   - SPARQL result objects: head.vars unioned, results.bindings
//     concatenated and de-duplicated
//   - plain objects: first non-empty value per field wins
func mergeValues(values []any, names []string) (any, []models.SkippedFile) {
	switch first := values[0].(type) {
	case []any:
		return mergeArrays(values, names)
	case map[string]any:
		if isSparqlResult(first) {
			return mergeSparqlResults(values, names)
		}

		return mergeObjects(values, names)
	default:
		// Scalars cannot be merged meaningfully; keep the first.
		return first, skipRest(names, "document is not a mergeable shape")
	}
}

func mergeArrays(values []any, names []string) (any, []models.SkippedFile) {
	var skipped []models.SkippedFile

	merged := make([]any, 0)
	seen := make(map[string]struct{})

	for i, value := range values {
		records, ok := value.([]any)
		if !ok {
			skipped = append(skipped, models.SkippedFile{Name: names[i], Reason: "expected a JSON array"})

			continue
		}

		for _, record := range records {
			key := canonicalKey(record)
			if _, dup := seen[key]; dup {
				continue
			}

			seen[key] = struct{}{}

			merged = append(merged, record)
		}
	}

	return merged, skipped
}

func mergeObjects(values []any, names []string) (any, []models.SkippedFile) {
	var skipped []models.SkippedFile

	merged := make(map[string]any)

	for i, value := range values {
		obj, ok := value.(map[string]any)
		if !ok {
			skipped = append(skipped, models.SkippedFile{Name: names[i], Reason: "expected a JSON object"})

			continue
		}

		for field, fieldValue := range obj {
			existing, present := merged[field]
			if !present || isEmpty(existing) {
				merged[field] = fieldValue
			}
		}
	}

	return merged, skipped
}

// isSparqlResult reports whether a document has the SPARQL JSON results
// shape: {"head": {"vars": [...]}, "results": {"bindings": [...]}}.
func isSparqlResult(obj map[string]any) bool {
	results, ok := obj["results"].(map[string]any)
	if !ok {
		return false
	}

	_, ok = results["bindings"].([]any)

	return ok
}

func mergeSparqlResults(values []any, names []string) (any, []models.SkippedFile) {
	var skipped []models.SkippedFile

	vars := make([]string, 0)
	varsSeen := make(map[string]struct{})
	bindings := make([]any, 0)
	bindingsSeen := make(map[string]struct{})

	for i, value := range values {
		obj, ok := value.(map[string]any)
		if !ok || !isSparqlResult(obj) {
			skipped = append(skipped, models.SkippedFile{Name: names[i], Reason: "expected a SPARQL result object"})

			continue
		}

		if head, ok := obj["head"].(map[string]any); ok {
			if headVars, ok := head["vars"].([]any); ok {
				for _, v := range headVars {
					name, ok := v.(string)
					if !ok {
						continue
					}

					if _, dup := varsSeen[name]; !dup {
						varsSeen[name] = struct{}{}

						vars = append(vars, name)
					}
				}
			}
		}

		results := obj["results"].(map[string]any)
		for _, binding := range results["bindings"].([]any) {
			key := canonicalKey(binding)
			if _, dup := bindingsSeen[key]; dup {
				continue
			}

			bindingsSeen[key] = struct{}{}

			bindings = append(bindings, binding)
		}
	}

	merged := map[string]any{
		"head":    map[string]any{"vars": vars},
		"results": map[string]any{"bindings": bindings},
	}

	return merged, skipped
}

// canonicalKey produces a deterministic identity for de-duplication.
// encoding/json sorts map keys, so equal records yield equal keys.
func canonicalKey(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return ""
	}

	return string(raw)
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func skipRest(names []string, reason string) []models.SkippedFile {
	skipped := make([]models.SkippedFile, 0, len(names)-1)
	for _, name := range names[1:] {
		skipped = append(skipped, models.SkippedFile{Name: name, Reason: reason})
	}

	return skipped
}
