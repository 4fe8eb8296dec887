package index

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-json"

	"github.com/starford/gapmap/internal/metrics"
	"github.com/starford/gapmap/internal/models"
	"github.com/starford/gapmap/internal/storage"
)

// Load brings the index up to date with the export file at exportPath. It
// reports whether the index was rewritten; an unchanged checksum is a no-op.
func Load(db *DB, exportPath string, logger *slog.Logger) (bool, error) {
	data, err := os.ReadFile(exportPath)
	if err != nil {
		return false, fmt.Errorf("index: read export: %w", err)
	}
	cs := storage.Checksum(data)

	current, err := db.Checksum()
	if err != nil {
		return false, err
	}
	if current == cs {
		logger.Debug("index: export unchanged", slog.String("checksum", cs))
		return false, nil
	}

	var cat models.Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		metrics.CatalogReloads.WithLabelValues("error").Inc()
		return false, fmt.Errorf("index: decode export: %w", err)
	}
	if err := db.ReplaceCatalog(&cat, cs); err != nil {
		metrics.CatalogReloads.WithLabelValues("error").Inc()
		return false, err
	}
	metrics.CatalogReloads.WithLabelValues("ok").Inc()
	logger.Info("index: catalog loaded",
		slog.String("checksum", cs),
		slog.Int("bottlenecks", len(cat.Bottlenecks)),
		slog.Int("capabilities", len(cat.Capabilities)),
		slog.Int("resources", len(cat.Resources)),
		slog.Int("fields", len(cat.Fields)),
	)
	return true, nil
}
