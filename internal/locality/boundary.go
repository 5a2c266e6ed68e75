package locality

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/landtitle/titling-backend/internal/metrics"
)

// BoundarySource answers point membership against the reference polygon.
// Points on the polygon's edge are covered. Implementations return
// ErrBoundaryUnavailable when no polygon is stored.
type BoundarySource interface {
	Covers(ctx context.Context, lon, lat float64) (bool, error)
}

// BoundaryChecker validates coordinates and tests them against the national
// boundary. It makes exactly one store call per check and never retries.
type BoundaryChecker struct {
	source BoundarySource
}

func NewBoundaryChecker(src BoundarySource) *BoundaryChecker {
	return &BoundaryChecker{source: src}
}

// IsWithinBoundary reports whether (lon, lat) lies inside or on the edge of the
// reference boundary.
func (c *BoundaryChecker) IsWithinBoundary(ctx context.Context, lon, lat float64) (bool, error) {
	if err := validateCoordinate(lon, lat); err != nil {
		metrics.BoundaryChecksTotal.WithLabelValues("invalid").Inc()
		return false, err
	}

	within, err := c.source.Covers(ctx, lon, lat)
	if err != nil {
		if errors.Is(err, ErrBoundaryUnavailable) {
			metrics.BoundaryChecksTotal.WithLabelValues("unavailable").Inc()
			return false, err
		}
		metrics.BoundaryChecksTotal.WithLabelValues("error").Inc()
		return false, wrapStore("boundary check", err)
	}

	if within {
		metrics.BoundaryChecksTotal.WithLabelValues("inside").Inc()
	} else {
		metrics.BoundaryChecksTotal.WithLabelValues("outside").Inc()
	}
	return within, nil
}

func validateCoordinate(lon, lat float64) error {
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return &ValidationError{Field: "longitude", Reason: fmt.Sprintf("%v is outside [-180, 180]", lon)}
	}
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return &ValidationError{Field: "latitude", Reason: fmt.Sprintf("%v is outside [-90, 90]", lat)}
	}
	return nil
}

// PostGISBoundary evaluates containment in the database. ST_Covers, unlike
// ST_Contains, is true for points on the boundary.
type PostGISBoundary struct {
	db *gorm.DB
}

func NewPostGISBoundary(db *gorm.DB) *PostGISBoundary {
	return &PostGISBoundary{db: db}
}

func (b *PostGISBoundary) Covers(ctx context.Context, lon, lat float64) (bool, error) {
	query := `
		SELECT ST_Covers(
			geometry,
			ST_SetSRID(ST_MakePoint($1, $2), 4326)
		)
		FROM locality.country_boundaries
		WHERE geometry IS NOT NULL
		ORDER BY imported_at DESC
		LIMIT 1
	`

	rows, err := b.db.WithContext(ctx).Raw(query, lon, lat).Rows()
	if err != nil {
		return false, fmt.Errorf("boundary containment query failed: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, fmt.Errorf("boundary containment query failed: %w", err)
		}
		return false, ErrBoundaryUnavailable
	}

	var covered bool
	if err := rows.Scan(&covered); err != nil {
		return false, fmt.Errorf("scan boundary containment: %w", err)
	}
	return covered, nil
}

// ReplaceBoundary stores geoJSON as the only reference boundary, inside one
// transaction so readers never observe an empty table.
func ReplaceBoundary(ctx context.Context, db *gorm.DB, countryCode, name, source string, geoJSON []byte) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM locality.country_boundaries`).Error; err != nil {
			return fmt.Errorf("clear boundaries: %w", err)
		}
		err := tx.Exec(`
			INSERT INTO locality.country_boundaries (country_code, name, geometry, source, imported_at)
			VALUES (?, ?, ST_SetSRID(ST_GeomFromGeoJSON(?), 4326), ?, NOW())
		`, countryCode, name, string(geoJSON), source).Error
		if err != nil {
			return fmt.Errorf("insert boundary: %w", err)
		}

		var valid bool
		if err := tx.Raw(`SELECT bool_and(ST_IsValid(geometry)) FROM locality.country_boundaries`).Scan(&valid).Error; err != nil {
			return fmt.Errorf("validate boundary: %w", err)
		}
		if !valid {
			return errors.New("imported boundary geometry is not valid")
		}
		return nil
	})
}
