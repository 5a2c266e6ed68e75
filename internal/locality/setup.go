package locality

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/landtitle/titling-backend/internal/db"
)

// Migrate creates the locality schema, the extensions it needs and its tables.
func Migrate(ctx context.Context, gdb *gorm.DB) error {
	gdb = gdb.WithContext(ctx)

	if err := db.EnsureSchema(gdb, "locality"); err != nil {
		return fmt.Errorf("ensure schema locality: %w", err)
	}
	for _, ext := range []string{"uuid-ossp", "postgis"} {
		if err := db.EnsureExtension(gdb, ext); err != nil {
			return fmt.Errorf("enable extension %s: %w", ext, err)
		}
	}

	if err := gdb.AutoMigrate(&Locality{}, &CountryBoundary{}); err != nil {
		return fmt.Errorf("auto-migrate locality tables: %w", err)
	}

	// Spatial index for ST_Covers.
	if err := gdb.Exec(`
		CREATE INDEX IF NOT EXISTS country_boundaries_geometry_gist
		ON locality.country_boundaries USING GIST (geometry)
	`).Error; err != nil {
		return fmt.Errorf("create boundary gist index: %w", err)
	}
	return nil
}
