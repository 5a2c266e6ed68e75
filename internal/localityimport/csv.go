package localityimport

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/landtitle/titling-backend/internal/locality"
)

// Record is one (type, name) pair read from an external dataset. Type is kept
// as read when it is not a known category, so the catalogue rejects it and
// the row is counted as invalid.
type Record struct {
	Type   locality.LocalityType
	Name   string
	Source string
	Line   int
}

func ParseCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f, path)
}

// ReadCSV reads a dataset with a header row containing "type" and "name"
// columns. Other columns are ignored.
func ReadCSV(in io.Reader, source string) ([]Record, error) {
	r := csv.NewReader(bufio.NewReader(in))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, errors.New("csv has no data rows")
	}

	header := records[0]
	// Handle BOM on first header cell
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"type", "name"} {
		if _, ok := col[k]; !ok {
			return nil, fmt.Errorf("missing required column: %s", k)
		}
	}

	var out []Record
	for rowIdx := 1; rowIdx < len(records); rowIdx++ {
		rec := records[rowIdx]
		get := func(name string) string {
			i := col[name]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		rawType, name := get("type"), get("name")
		if rawType == "" && name == "" {
			continue
		}
		out = append(out, Record{
			Type:   resolveType(rawType),
			Name:   name,
			Source: source,
			Line:   rowIdx + 1,
		})
	}
	return out, nil
}

func resolveType(raw string) locality.LocalityType {
	if t, err := locality.ParseLocalityType(raw); err == nil {
		return t
	}
	return locality.LocalityType(raw)
}
