package catalogue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/omlboard/omlboard/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// profileSchema validates external catalogue files before they are
// admitted. Bad configuration should fail at load time, not at match
// time.
const profileSchema = `{
  "type": "object",
  "required": ["name", "required_datasets", "views"],
  "properties": {
    "name": {"type": "string", "minLength": 3},
    "required_datasets": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    },
    "views": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    },
    "view_data_ties": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {"type": "string"}
      }
    },
    "module_prefix": {"type": "string"}
  }
}`

// LoadDir registers every *.json profile in dir, sorted by filename so
// catalogue order (and therefore the matcher tie-break) is stable.
func (c *Catalogue) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to read catalogue directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	schemaLoader := gojsonschema.NewStringLoader(profileSchema)

	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read catalogue file %s: %w", name, err)
		}

		result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return fmt.Errorf("failed to validate catalogue file %s: %w", name, err)
		}

		if !result.Valid() {
			return fmt.Errorf("catalogue file %s is invalid: %s", name, formatSchemaErrors(result))
		}

		var profile models.Profile

		err = json.Unmarshal(raw, &profile)
		if err != nil {
			return fmt.Errorf("failed to parse catalogue file %s: %w", name, err)
		}

		err = c.Register(&profile)
		if err != nil {
			return fmt.Errorf("catalogue file %s: %w", name, err)
		}

		c.logger.Debug("Registered catalogue profile", "profile", profile.Name, "file", name)
	}

	return nil
}

func formatSchemaErrors(result *gojsonschema.Result) string {
	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}

	return strings.Join(messages, "; ")
}
