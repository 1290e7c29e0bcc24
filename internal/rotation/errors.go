package rotation

import "errors"

var (
	// ErrEmptyCatalog means a server's scenario catalog has no entries.
	ErrEmptyCatalog = errors.New("scenario catalog is empty")
	// ErrMissingCatalogField means the catalog document has no scenarioList.
	ErrMissingCatalogField = errors.New("catalog document is missing scenarioList")
	// ErrNoEligibleScenario means every catalog entry is excluded by history.
	ErrNoEligibleScenario = errors.New("no eligible scenario")
	// ErrMissingConfigField means the config document has no game object.
	ErrMissingConfigField = errors.New("config document is missing game section")
)
