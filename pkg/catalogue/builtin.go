package catalogue

import "github.com/omlboard/omlboard/pkg/models"

// Built-in profiles mirror the stock dashboard set shipped with the
// query toolchain. Order is significant (matcher tie-break).
func builtinProfiles() []*models.Profile {
	return []*models.Profile{
		{
			Name: "System Dashboard",
			RequiredDatasets: []string{
				"Requirements",
				"SystemArchitecture",
				"Components",
				"Subsystems",
				"Assemblies",
				"TripleCount",
			},
			Views: []string{
				"Home Page",
				"Requirements",
				"System Logical Architecture",
				"Architecture",
			},
			ViewDataTies: map[string][]string{
				"Home Page":                   {"TripleCount"},
				"Requirements":                {"Requirements"},
				"System Logical Architecture": {"SystemArchitecture", "Subsystems"},
				"Architecture":                {"Components", "Assemblies"},
			},
			ModulePrefix: "systemdash",
		},
		{
			Name: "Mission Dashboard",
			RequiredDatasets: []string{
				"MissionArchitecture",
				"EnvEntities",
				"IPTStructure",
				"TripleCount",
			},
			Views: []string{
				"Home Page",
				"Mission",
			},
			ViewDataTies: map[string][]string{
				"Home Page": {"TripleCount"},
				"Mission":   {"MissionArchitecture", "EnvEntities", "IPTStructure"},
			},
			ModulePrefix: "missiondash",
		},
		{
			Name: "Functional Dashboard",
			RequiredDatasets: []string{
				"FunctionalArchitecture",
				"Components",
				"TripleCount",
			},
			Views: []string{
				"Home Page",
				"Functional Architecture",
			},
			ViewDataTies: map[string][]string{
				"Home Page":               {"TripleCount"},
				"Functional Architecture": {"FunctionalArchitecture", "Components"},
			},
			ModulePrefix: "funcdash",
		},
	}
}

// WithBuiltins registers the stock profiles into the catalogue.
func (c *Catalogue) WithBuiltins() (*Catalogue, error) {
	for _, profile := range builtinProfiles() {
		err := c.Register(profile)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}
