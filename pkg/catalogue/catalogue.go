// Package catalogue holds the dashboard profile catalogue and the
// coverage-based profile matcher.
package catalogue

import (
	"fmt"
	"log/slog"

	"github.com/omlboard/omlboard/pkg/models"
)

// Catalogue is an ordered set of profiles. Declaration order matters:
// it is the final tie-break during matching, so the catalogue never
// picks a winner arbitrarily.
type Catalogue struct {
	logger   *slog.Logger
	profiles []*models.Profile
	byName   map[string]*models.Profile
}

func NewCatalogue(logger *slog.Logger) *Catalogue {
	return &Catalogue{
		logger: logger.With("module", "catalogue"),
		byName: make(map[string]*models.Profile),
	}
}

// Register appends a profile. Names are unique; re-registering a name
// is a configuration error.
func (c *Catalogue) Register(profile *models.Profile) error {
	if _, exists := c.byName[profile.Name]; exists {
		return fmt.Errorf("profile %q already registered", profile.Name)
	}

	c.profiles = append(c.profiles, profile)
	c.byName[profile.Name] = profile

	return nil
}

// Profiles returns the profiles in declaration order.
func (c *Catalogue) Profiles() []*models.Profile {
	return c.profiles
}

// ProfileByName looks up a profile by its identity.
func (c *Catalogue) ProfileByName(name string) (*models.Profile, bool) {
	profile, ok := c.byName[name]

	return profile, ok
}

// RequiredFilesForView resolves the datasets a view of a given profile
// needs. An unknown profile name yields no datasets.
func (c *Catalogue) RequiredFilesForView(profileName, view string) []string {
	profile, ok := c.byName[profileName]
	if !ok {
		return nil
	}

	return profile.DatasetsForView(view)
}
