package cmd

import (
	"fmt"
	"log/slog"

	"github.com/omlboard/omlboard/pkg/catalogue"
)

// NewCatalogue builds the profile catalogue: built-in profiles first,
// then any external profile files, so externally added profiles never
// displace the stock set in the matcher tie-break.
func NewCatalogue(logger *slog.Logger, cataloguePath string) *catalogue.Catalogue {
	cat, err := catalogue.NewCatalogue(logger).WithBuiltins()
	if err != nil {
		panic(fmt.Errorf("failed to register built-in profiles: %w", err))
	}

	if cataloguePath != "" {
		err = cat.LoadDir(cataloguePath)
		if err != nil {
			panic(fmt.Errorf("failed to load profile catalogue from %s: %w", cataloguePath, err))
		}
	}

	return cat
}
