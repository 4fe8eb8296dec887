package index

import "github.com/starford/gapmap/internal/models"

// CatalogIndex defines the interface for catalog indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type CatalogIndex interface {
	ReplaceCatalog(cat *models.Catalog, checksum string) error
	Checksum() (string, error)
	Status() (Status, error)
	List(kind, field string) ([]EntityRow, error)
	Get(kind, slug string) ([]byte, error)
	Search(query, kind string, limit int) ([]SearchResult, error)
	Graph() ([]GraphNode, []GraphLink, error)
	Close() error
}

// Verify *DB satisfies CatalogIndex at compile time.
var _ CatalogIndex = (*DB)(nil)
