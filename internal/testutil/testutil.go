// Package testutil provides shared test helpers for catalog fixtures and
// databases.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/starford/gapmap/internal/index"
	"github.com/starford/gapmap/internal/models"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "gapmap-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// LoadedDB returns a TestDB holding SampleCatalog.
func LoadedDB(t *testing.T) *index.DB {
	t.Helper()
	db := TestDB(t)
	if err := db.ReplaceCatalog(SampleCatalog(), "sample"); err != nil {
		t.Fatalf("ReplaceCatalog: %v", err)
	}
	return db
}

// SampleCatalog is a small resolved catalog: two fields, two capabilities
// with one resource each, and three bottlenecks, one of them uncategorized.
func SampleCatalog() *models.Catalog {
	paper := models.Resource{
		ID: "r1", Title: "Nanopore sequencing review", URL: "https://example.org/nanopore",
		Content: "How nanopores read DNA", ResourceTypes: []string{"Publication"},
	}
	dataset := models.Resource{
		ID: "r2", Title: "Magnetometry dataset", URL: "https://example.org/magneto",
		Content: "Field measurements", ResourceTypes: []string{"Dataset"},
	}
	bio := models.Field{ID: "f1", Name: "Biology", Description: "Life sciences"}
	phys := models.Field{ID: "f2", Name: "Physics", Description: "Matter and energy"}
	seq := models.Capability{
		ID: "c1", Name: "Cheap sequencing", Slug: "cheap-sequencing", Rank: 3,
		Description: "Sequencing under a dollar per genome",
		Resources:   []models.Resource{paper}, Tags: []string{"Open"}, PrivateTags: []string{},
	}
	sensor := models.Capability{
		ID: "c2", Name: "Quantum sensors", Slug: "quantum-sensors", Rank: 4,
		Description: "Room temperature quantum sensing",
		Resources:   []models.Resource{dataset}, Tags: []string{"Hardware"}, PrivateTags: []string{"Internal"},
	}
	return &models.Catalog{
		Resources:    []models.Resource{paper, dataset},
		Fields:       []models.Field{bio, phys},
		Capabilities: []models.Capability{seq, sensor},
		Bottlenecks: []models.Bottleneck{
			{
				ID: "b1", Name: "Reading genomes", Slug: "reading-genomes", Number: 1, Rank: 5,
				Description: "Genomes are expensive to read", Field: bio,
				Capabilities: []models.Capability{seq}, Tags: []string{"Open"}, PrivateTags: []string{},
			},
			{
				ID: "b2", Name: "Measuring qubits", Slug: "measuring-qubits", Number: 2, Rank: 2,
				Description: "Qubit readout is noisy", Field: phys,
				Capabilities: []models.Capability{sensor}, Tags: []string{"Hardware", models.UnknownTag}, PrivateTags: []string{},
			},
			{
				ID: "b3", Name: "Orphan gap", Slug: "orphan-gap", Number: 3,
				Field: models.UncategorizedField(), Capabilities: []models.Capability{}, Tags: []string{}, PrivateTags: []string{},
			},
		},
		ResourceTypeOptions: []string{"Publication", "Dataset"},
		GeneratedAt:         time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}
