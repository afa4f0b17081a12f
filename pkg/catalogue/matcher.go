package catalogue

import (
	"sort"

	"github.com/omlboard/omlboard/pkg/models"
)

// FullCoverage is the minimum score at which a match is usable: every
// required dataset of the profile must be present. The system never
// silently renders a view lacking its declared required data.
const FullCoverage = 1.0

// Match is the outcome of scoring the catalogue against a set of
// available dataset basenames.
type Match struct {
	Profile *models.Profile `json:"profile"`
	Score   float64         `json:"score"`
	Missing []string        `json:"missing,omitempty"`
}

// Usable reports whether the best candidate reached full coverage.
func (m *Match) Usable() bool {
	return m.Profile != nil && m.Score >= FullCoverage
}

// MatchProfile scores every profile by coverage of its required
// datasets and returns the best candidate.
//
// Winner selection is deterministic: strictly highest coverage first,
// then the larger required set (the more specific profile), then
// catalogue declaration order. When the best candidate is below full
// coverage the caller gets it anyway, together with the missing set,
// so a partial-match diagnostic can be presented.
func (c *Catalogue) MatchProfile(available map[string]struct{}) Match {
	best := Match{}

	for _, profile := range c.profiles {
		required := profile.RequiredDatasets
		if len(required) == 0 {
			continue
		}

		present := 0

		var missing []string

		for _, dataset := range required {
			if _, ok := available[dataset]; ok {
				present++
			} else {
				missing = append(missing, dataset)
			}
		}

		score := float64(present) / float64(len(required))

		if best.Profile == nil ||
			score > best.Score ||
			(score == best.Score && len(required) > len(best.Profile.RequiredDatasets)) {
			sort.Strings(missing)

			best = Match{Profile: profile, Score: score, Missing: missing}
		}
	}

	return best
}

// AvailableSet converts a dataset name list to the set form the matcher
// consumes.
func AvailableSet(datasets []string) map[string]struct{} {
	set := make(map[string]struct{}, len(datasets))
	for _, name := range datasets {
		set[name] = struct{}{}
	}

	return set
}
