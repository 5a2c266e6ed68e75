// Package seeds bootstraps reference data that must exist before the first
// bulk import.
package seeds

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/landtitle/titling-backend/internal/locality"
	"github.com/landtitle/titling-backend/internal/logger"
)

//go:embed data/departments.json
var departmentsJSON []byte

type regionDepartments struct {
	Region      string   `json:"region"`
	Departments []string `json:"departments"`
}

// Departments returns the bootstrap department names in file order.
func Departments() ([]string, error) {
	var regions []regionDepartments
	if err := json.Unmarshal(departmentsJSON, &regions); err != nil {
		return nil, fmt.Errorf("failed to parse departments.json: %w", err)
	}
	var out []string
	for _, r := range regions {
		out = append(out, r.Departments...)
	}
	return out, nil
}

// SeedAll upserts every bootstrap department. It is safe to run repeatedly.
func SeedAll(ctx context.Context, cat *locality.Catalogue) error {
	names, err := Departments()
	if err != nil {
		return err
	}

	for _, name := range names {
		if _, err := cat.UpsertLocality(ctx, locality.Department, name); err != nil {
			return fmt.Errorf("seed department %s: %w", name, err)
		}
	}

	logger.L().Info("locality_seed_done", "departments", len(names))
	return nil
}
