package consolidate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func materialize(t *testing.T, content string) (string, error) {
	t.Helper()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "data.json")
	csvPath := filepath.Join(dir, "data.csv")

	require.NoError(t, os.WriteFile(jsonPath, []byte(content), 0o644))

	err := MaterializeCSV(jsonPath, csvPath)
	if err != nil {
		return "", err
	}

	raw, readErr := os.ReadFile(csvPath)
	require.NoError(t, readErr)

	return string(raw), nil
}

func TestMaterializeCSV_SparqlResult(t *testing.T) {
	out, err := materialize(t, `{
		"head": {"vars": ["name", "mass"]},
		"results": {"bindings": [
			{"name": {"type": "literal", "value": "motor"}, "mass": {"type": "literal", "value": "12"}},
			{"name": {"type": "literal", "value": "frame"}}
		]}
	}`)
	require.NoError(t, err)

	assert.Equal(t, "name,mass\nmotor,12\nframe,\n", out)
}

func TestMaterializeCSV_RecordArray(t *testing.T) {
	out, err := materialize(t, `[
		{"id": 1, "name": "motor"},
		{"id": 2, "name": "frame", "mass": 3.5}
	]`)
	require.NoError(t, err)

	// Header unions record fields in first-seen order.
	assert.Equal(t, "id,name,mass\n1,motor,\n2,frame,3.5\n", out)
}

func TestMaterializeCSV_UnsupportedShapes(t *testing.T) {
	_, err := materialize(t, `{"just": "an object"}`)
	assert.Error(t, err)

	_, err = materialize(t, `[1, 2, 3]`)
	assert.Error(t, err)

	_, err = materialize(t, `42`)
	assert.Error(t, err)
}
