package rotation

import "context"

// ConfigStore reads and writes per-server config documents.
// Production: adapter/jsonfile.Store
// Testing: adapter/fake.Documents
type ConfigStore interface {
	ReadDocument(ctx context.Context, serverIndex string) (Document, error)
	WriteDocument(ctx context.Context, serverIndex string, doc Document) error
}

// CatalogSource reads the ordered scenario catalog for a server. Missing
// and empty scenario lists surface as ErrMissingCatalogField and
// ErrEmptyCatalog.
// Production: adapter/jsonfile.Store
// Testing: adapter/fake.Documents
type CatalogSource interface {
	ReadCatalog(ctx context.Context, serverIndex string) ([]string, error)
}
