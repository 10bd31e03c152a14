// Package layout derives on-disk paths from classifications and parses the
// file names found inside variant directories. It performs no I/O.
package layout

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mesh-intelligence/hoard/pkg/types"
)

// Normalize converts a caller-supplied value into its directory segment:
// trimmed, lowercased, with spaces replaced by underscores. Writes and reads
// both go through Normalize, so lookups are case-insensitive.
func Normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// FirstLetter returns the bucket directory for a name under SchemeGenre: the
// first rune of the normalized name, or "0" when that rune is not a letter or
// digit.
func FirstLetter(name string) string {
	r, _ := utf8.DecodeRuneInString(Normalize(name))
	if r == utf8.RuneError || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
		return "0"
	}
	return string(r)
}

// ValidateSegment checks a required path-bearing value. field names the
// value in the returned error.
func ValidateSegment(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s: %w", field, types.ErrBlankSegment)
	}
	return checkSafe(field, value)
}

// ValidateOptionalSegment is ValidateSegment for values that may be blank.
func ValidateOptionalSegment(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return checkSafe(field, value)
}

func checkSafe(field, value string) error {
	if strings.Contains(value, "..") ||
		strings.ContainsAny(value, `/\`+"\x00") ||
		filepath.IsAbs(value) ||
		Normalize(value) == "." {
		return fmt.Errorf("%s %q: %w", field, value, types.ErrUnsafeSegment)
	}
	return nil
}

// ValidateClassification checks kind, category, type and subtype.
func ValidateClassification(c types.Classification) error {
	if !c.Kind.Valid() {
		return fmt.Errorf("kind: %w", types.ErrUnknownKind)
	}
	if err := ValidateSegment("category", c.Category); err != nil {
		return err
	}
	if err := ValidateSegment("type", c.Type); err != nil {
		return err
	}
	return ValidateOptionalSegment("subtype", c.Subtype)
}

// ValidateEntity checks a classification and an entity name.
func ValidateEntity(c types.Classification, name string) error {
	if err := ValidateClassification(c); err != nil {
		return err
	}
	return ValidateSegment("name", name)
}

// ValidateRef checks every path-bearing field of a variant reference.
func ValidateRef(ref types.VariantRef) error {
	if err := ValidateEntity(ref.Classification, ref.Name); err != nil {
		return err
	}
	return ValidateSegment("variant", ref.Variant)
}

// ValidateImageType rejects values outside the image type vocabulary.
func ValidateImageType(it types.ImageType) error {
	if !it.Valid() {
		return fmt.Errorf("%w: %d", types.ErrUnknownImageType, int(it))
	}
	return nil
}
