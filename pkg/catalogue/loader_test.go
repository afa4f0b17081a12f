package catalogue

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDir_RegistersProfilesInFilenameOrder(t *testing.T) {
	dir := t.TempDir()

	writeProfile(t, dir, "20-power.json", `{
		"name": "Power Dashboard",
		"required_datasets": ["PowerBudget"],
		"views": ["Power"]
	}`)
	writeProfile(t, dir, "10-thermal.json", `{
		"name": "Thermal Dashboard",
		"required_datasets": ["ThermalModel"],
		"views": ["Thermal"],
		"view_data_ties": {"Thermal": ["ThermalModel"]},
		"module_prefix": "thermal"
	}`)

	cat := NewCatalogue(slog.Default())
	require.NoError(t, cat.LoadDir(dir))

	profiles := cat.Profiles()
	require.Len(t, profiles, 2)

	// Filename order, not write order.
	assert.Equal(t, "Thermal Dashboard", profiles[0].Name)
	assert.Equal(t, "Power Dashboard", profiles[1].Name)
	assert.Equal(t, "thermal", profiles[0].ModulePrefix)

	assert.Equal(t, []string{"ThermalModel"},
		cat.RequiredFilesForView("Thermal Dashboard", "Thermal"))
}

func TestLoadDir_RejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing views", content: `{"name": "Bad", "required_datasets": ["X"]}`},
		{name: "empty datasets", content: `{"name": "Bad", "required_datasets": [], "views": ["V"]}`},
		{name: "short name", content: `{"name": "ab", "required_datasets": ["X"], "views": ["V"]}`},
		{name: "wrong type", content: `{"name": "Bad", "required_datasets": "X", "views": ["V"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeProfile(t, dir, "bad.json", tt.content)

			err := NewCatalogue(slog.Default()).LoadDir(dir)
			assert.Error(t, err)
		})
	}
}

func TestLoadDir_MissingDirectoryIsNotAnError(t *testing.T) {
	cat := NewCatalogue(slog.Default())

	assert.NoError(t, cat.LoadDir(filepath.Join(t.TempDir(), "does-not-exist")))
	assert.Empty(t, cat.Profiles())
}

func TestLoadDir_BuiltinsKeepPriorityOverLoadedProfiles(t *testing.T) {
	dir := t.TempDir()

	// A catalogue file that requires a subset of the System Dashboard
	// datasets must not displace the builtin on a tie.
	writeProfile(t, dir, "custom.json", `{
		"name": "Custom Dashboard",
		"required_datasets": ["Requirements", "TripleCount"],
		"views": ["Custom"]
	}`)

	cat, err := NewCatalogue(slog.Default()).WithBuiltins()
	require.NoError(t, err)
	require.NoError(t, cat.LoadDir(dir))

	match := cat.MatchProfile(AvailableSet([]string{
		"Requirements", "SystemArchitecture", "Components",
		"Subsystems", "Assemblies", "TripleCount",
	}))

	require.True(t, match.Usable())
	// Both reach full coverage; the builtin has the larger required set.
	assert.Equal(t, "System Dashboard", match.Profile.Name)
}
