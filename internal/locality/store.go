package locality

import "context"

// Store is the persistence boundary of the catalogue. Implementations must
// enforce uniqueness of (type, name) themselves.
type Store interface {
	// Upsert inserts rec unless its (type, name) already exists, in which case the
	// stored record is returned. created reports whether a row was written.
	Upsert(ctx context.Context, rec Locality) (stored Locality, created bool, err error)

	// ListByType returns every record of t ordered by name.
	ListByType(ctx context.Context, t LocalityType) ([]Locality, error)

	// Search returns up to limit names of type t containing partial,
	// case-insensitively, in ascending order.
	Search(ctx context.Context, t LocalityType, partial string, limit int) ([]string, error)

	// Count returns the number of catalogue rows.
	Count(ctx context.Context) (int64, error)
}
