package locality

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalityType is the administrative category of a locality. Values are stored
// with the spelling used by the source datasets.
type LocalityType string

const (
	Department         LocalityType = "departement"
	District           LocalityType = "arrondissement"
	AdministrativeUnit LocalityType = "administration"
)

// AllTypes lists every supported category.
var AllTypes = []LocalityType{Department, District, AdministrativeUnit}

var typeAliases = map[string]LocalityType{
	"departement":         Department,
	"département":         Department,
	"department":          Department,
	"arrondissement":      District,
	"district":            District,
	"administration":      AdministrativeUnit,
	"administrative_unit": AdministrativeUnit,
}

// Valid reports whether t is one of the supported categories.
func (t LocalityType) Valid() bool {
	switch t {
	case Department, District, AdministrativeUnit:
		return true
	}
	return false
}

// ParseLocalityType accepts the source spellings and their English names,
// case-insensitively.
func ParseLocalityType(s string) (LocalityType, error) {
	if t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return "", &ValidationError{Field: "type", Reason: "unknown locality type " + quote(s)}
}

// Locality is a canonical catalogue entry. Records are immutable reference data.
type Locality struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Type      LocalityType `gorm:"size:32;not null;uniqueIndex:localities_type_name_unique,priority:1" json:"type"`
	Name      string       `gorm:"not null;uniqueIndex:localities_type_name_unique,priority:2" json:"name"`
	CreatedAt time.Time    `json:"created_at"`
}

func (Locality) TableName() string {
	return "locality.localities"
}

// CountryBoundary stores the national territory polygon used by the
// containment check. Only the most recently imported row is consulted.
type CountryBoundary struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CountryCode string    `gorm:"size:3;index" json:"country_code"`
	Name        string    `json:"name"`

	// POLYGON or MULTIPOLYGON in WGS84 (SRID 4326)
	Geometry string `gorm:"type:geometry(Geometry,4326)" json:"-"`

	Source     string    `json:"source"`
	ImportedAt time.Time `gorm:"index" json:"imported_at"`
}

func (CountryBoundary) TableName() string {
	return "locality.country_boundaries"
}

// idNamespace seeds deterministic locality ids so that every importer derives
// the same id for the same (type, name) pair.
var idNamespace = uuid.MustParse("6f1c2a0e-3b7d-5e8a-9c41-2d0b7f6e8a13")

// LocalityID returns the stable id of a (type, canonical name) pair.
func LocalityID(t LocalityType, name string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte(string(t)+":"+name))
}
