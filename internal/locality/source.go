package locality

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// RawField is one owning record's locality column as stored.
type RawField struct {
	ID    string
	Value string
}

// RecordSource is a table of owning records the normalizer rewrites.
type RecordSource interface {
	Name() string
	// ScanLocalityFields returns every non-null locality field, ordered by id.
	ScanLocalityFields(ctx context.Context) ([]RawField, error)
	// WriteLocalityField replaces old with encoded for id. It returns
	// ErrRecordChanged when the stored value is no longer old.
	WriteLocalityField(ctx context.Context, id, old, encoded string) error
}

// TableSource reads and rewrites a locality column of an arbitrary table.
type TableSource struct {
	db       *gorm.DB
	table    string
	idColumn string
	column   string
}

// NewTableSource builds a source for table (optionally schema-qualified).
func NewTableSource(db *gorm.DB, table, idColumn, column string) *TableSource {
	return &TableSource{db: db, table: table, idColumn: idColumn, column: column}
}

func (s *TableSource) Name() string {
	return s.table + "." + s.column
}

// quoteQualified quotes each dot-separated part of an identifier.
func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

func (s *TableSource) ScanLocalityFields(ctx context.Context) ([]RawField, error) {
	id, col := pq.QuoteIdentifier(s.idColumn), pq.QuoteIdentifier(s.column)
	query := fmt.Sprintf(
		`SELECT %s::text, %s::text FROM %s WHERE %s IS NOT NULL ORDER BY %s`,
		id, col, quoteQualified(s.table), col, id,
	)

	rows, err := s.db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.Name(), err)
	}
	defer rows.Close()

	var out []RawField
	for rows.Next() {
		var f RawField
		if err := rows.Scan(&f.ID, &f.Value); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", s.Name(), err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// WriteLocalityField is a compare-and-set on the column's text form, so a
// concurrent edit of the record is never overwritten.
func (s *TableSource) WriteLocalityField(ctx context.Context, id, old, encoded string) error {
	idCol, col := pq.QuoteIdentifier(s.idColumn), pq.QuoteIdentifier(s.column)
	stmt := fmt.Sprintf(
		`UPDATE %s SET %s = ? WHERE %s::text = ? AND %s::text = ?`,
		quoteQualified(s.table), col, idCol, col,
	)
	res := s.db.WithContext(ctx).Exec(stmt, encoded, id, old)
	if res.Error != nil {
		return wrapStore("update "+s.Name(), res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordChanged
	}
	return nil
}

// MemorySource is an in-process RecordSource for tests and dry runs.
type MemorySource struct {
	mu     sync.Mutex
	name   string
	fields map[string]string
	failOn map[string]error
	writes int
}

func NewMemorySource(name string, fields map[string]string) *MemorySource {
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return &MemorySource{name: name, fields: cp, failOn: make(map[string]error)}
}

// FailOn makes every write to id fail with err.
func (s *MemorySource) FailOn(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[id] = err
}

// Get returns the current stored value of id.
func (s *MemorySource) Get(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.fields[id]
	return v, ok
}

// Writes returns the number of successful writes.
func (s *MemorySource) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *MemorySource) Name() string { return s.name }

func (s *MemorySource) ScanLocalityFields(_ context.Context) ([]RawField, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RawField, 0, len(s.fields))
	for id, v := range s.fields {
		out = append(out, RawField{ID: id, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemorySource) WriteLocalityField(_ context.Context, id, old, encoded string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failOn[id]; ok {
		return err
	}
	if cur, ok := s.fields[id]; !ok || cur != old {
		return ErrRecordChanged
	}
	s.fields[id] = encoded
	s.writes++
	return nil
}
