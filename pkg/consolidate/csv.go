package consolidate

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// MaterializeCSV writes a CSV rendition of a consolidated JSON dataset
// next to it, so project folders hold both artifact forms. SPARQL
// result objects use head.vars as the header; arrays of flat records
// union each record's sorted fields in first-seen order.
func MaterializeCSV(jsonPath, csvPath string) error {
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", jsonPath, err)
	}

	var value any

	err = json.Unmarshal(raw, &value)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", jsonPath, err)
	}

	var header []string

	var rows [][]string

	switch doc := value.(type) {
	case map[string]any:
		if !isSparqlResult(doc) {
			return fmt.Errorf("%s: object is not a SPARQL result, cannot derive rows", jsonPath)
		}

		header, rows = sparqlToRows(doc)
	case []any:
		header, rows, err = recordsToRows(doc)
		if err != nil {
			return fmt.Errorf("%s: %w", jsonPath, err)
		}
	default:
		return fmt.Errorf("%s: unsupported document shape for CSV", jsonPath)
	}

	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", csvPath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	err = writer.WriteAll(rows)
	if err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}

	writer.Flush()

	return writer.Error()
}

func sparqlToRows(doc map[string]any) ([]string, [][]string) {
	header := make([]string, 0)

	if head, ok := doc["head"].(map[string]any); ok {
		if vars, ok := head["vars"].([]any); ok {
			for _, v := range vars {
				if name, ok := v.(string); ok {
					header = append(header, name)
				}
			}
		}
	}

	results := doc["results"].(map[string]any)
	bindings := results["bindings"].([]any)
	rows := make([][]string, 0, len(bindings))

	for _, b := range bindings {
		binding, ok := b.(map[string]any)
		if !ok {
			continue
		}

		row := make([]string, len(header))

		for i, name := range header {
			if cell, ok := binding[name].(map[string]any); ok {
				row[i] = stringify(cell["value"])
			}
		}

		rows = append(rows, row)
	}

	return header, rows
}

func recordsToRows(records []any) ([]string, [][]string, error) {
	header := make([]string, 0)
	seen := make(map[string]struct{})

	for _, r := range records {
		record, ok := r.(map[string]any)
		if !ok {
			return nil, nil, fmt.Errorf("array members are not objects, cannot derive rows")
		}

		// Map iteration order is random; take each record's keys in
		// sorted order so the unioned header is deterministic.
		for _, field := range sortedKeys(record) {
			if _, dup := seen[field]; !dup {
				seen[field] = struct{}{}

				header = append(header, field)
			}
		}
	}

	rows := make([][]string, 0, len(records))

	for _, r := range records {
		record := r.(map[string]any)
		row := make([]string, len(header))

		for i, field := range header {
			if v, ok := record[field]; ok {
				row[i] = stringify(v)
			}
		}

		rows = append(rows, row)
	}

	return header, rows, nil
}

func sortedKeys(record map[string]any) []string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		raw, _ := json.Marshal(v)

		return string(raw)
	default:
		raw, _ := json.Marshal(v)

		return string(raw)
	}
}
