package locality

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ReferenceKind tells which representation a stored locality field holds.
type ReferenceKind int

const (
	// ReferenceNull is an absent or blank field.
	ReferenceNull ReferenceKind = iota
	// ReferenceBare is the legacy form: a bare locality name with no type.
	ReferenceBare
	// ReferenceStructured is the current {"type", "value"} form.
	ReferenceStructured
)

func (k ReferenceKind) String() string {
	switch k {
	case ReferenceBare:
		return "bare"
	case ReferenceStructured:
		return "structured"
	}
	return "null"
}

// Reference is a locality value embedded in an owning record (land title,
// user). The representation is resolved once, by ParseReference or Scan.
type Reference struct {
	Kind ReferenceKind
	Type LocalityType
	// Name is the locality name, serialized as "value" in the structured form.
	Name string
}

// Bare builds a legacy reference.
func Bare(name string) Reference {
	return Reference{Kind: ReferenceBare, Name: name}
}

// Structured builds a current-form reference.
func Structured(t LocalityType, name string) Reference {
	return Reference{Kind: ReferenceStructured, Type: t, Name: name}
}

// ParseReference classifies a raw stored field. A JSON object carrying both
// "type" and "value" keys is structured, whatever its type value; a JSON
// string is unwrapped first; anything else that is not blank is a bare name
// kept verbatim.
func ParseReference(raw string) Reference {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return Reference{Kind: ReferenceNull}
	}
	// jsonb columns hold legacy names as JSON strings.
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err == nil {
			return ParseReference(inner)
		}
	}
	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			rawType, hasType := obj["type"]
			rawValue, hasValue := obj["value"]
			if hasType && hasValue {
				return Structured(LocalityType(jsonText(rawType)), jsonText(rawValue))
			}
		}
	}
	return Bare(raw)
}

// jsonText returns the string a JSON value holds, or its literal text when it
// is not a string.
func jsonText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Normalize converts a bare reference into the structured form using
// defaultType. Null and structured references are returned unchanged.
func (r Reference) Normalize(defaultType LocalityType) Reference {
	if r.Kind != ReferenceBare {
		return r
	}
	return Structured(defaultType, r.Name)
}

type structuredJSON struct {
	Type  LocalityType `json:"type"`
	Value string       `json:"value"`
}

// Encode renders the reference in its stored form: a JSON object for
// structured references, the raw name for bare ones.
func (r Reference) Encode() (string, error) {
	switch r.Kind {
	case ReferenceStructured:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(structuredJSON{Type: r.Type, Value: r.Name}); err != nil {
			return "", err
		}
		return strings.TrimSuffix(buf.String(), "\n"), nil
	case ReferenceBare:
		return r.Name, nil
	}
	return "", nil
}

func (r Reference) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case ReferenceStructured:
		s, err := r.Encode()
		return []byte(s), err
	case ReferenceBare:
		return json.Marshal(r.Name)
	}
	return []byte("null"), nil
}

func (r *Reference) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*r = ParseReference(s)
		return nil
	}
	*r = ParseReference(string(trimmed))
	return nil
}

// Scan reads text or jsonb columns.
func (r *Reference) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = Reference{Kind: ReferenceNull}
	case string:
		*r = ParseReference(v)
	case []byte:
		*r = ParseReference(string(v))
	default:
		return fmt.Errorf("locality reference: unsupported scan type %T", src)
	}
	return nil
}

func (r Reference) Value() (driver.Value, error) {
	if r.Kind == ReferenceNull {
		return nil, nil
	}
	return r.Encode()
}
