package locality

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// CanonicalName is the stored form of a locality name: NFC, trimmed, with
// internal whitespace collapsed to single spaces. Case is preserved.
func CanonicalName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// foldName is the comparison key for case-insensitive matching.
// Casers are stateful, so one is built per call.
func foldName(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// escapeLike escapes the LIKE metacharacters of s using the default
// backslash escape.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func validateName(name string) (string, error) {
	canon := CanonicalName(name)
	if canon == "" {
		return "", &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return canon, nil
}

func validateType(t LocalityType) error {
	if !t.Valid() {
		return &ValidationError{Field: "type", Reason: "unknown locality type " + quote(string(t))}
	}
	return nil
}
