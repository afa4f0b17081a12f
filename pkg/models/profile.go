// Package models defines the core domain models for the dashboard
// build/query pipeline.
package models

// Profile is a catalogue entry describing which datasets, views and
// module routing constitute one kind of dashboard. Profiles are
// immutable configuration; identity is the profile name.
type Profile struct {
	Name             string              `json:"name"               validate:"required,min=3"`
	RequiredDatasets []string            `json:"required_datasets"  validate:"required,min=1"`
	Views            []string            `json:"views"              validate:"required,min=1"`
	ViewDataTies     map[string][]string `json:"view_data_ties"`
	ModulePrefix     string              `json:"module_prefix"`
}

// RequiredSet returns the required datasets as a set.
func (p *Profile) RequiredSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.RequiredDatasets))
	for _, name := range p.RequiredDatasets {
		set[name] = struct{}{}
	}

	return set
}

// DatasetsForView returns the subset of required datasets a view needs.
// Views without an explicit tie need no datasets.
func (p *Profile) DatasetsForView(view string) []string {
	if p.ViewDataTies == nil {
		return nil
	}

	return p.ViewDataTies[view]
}
