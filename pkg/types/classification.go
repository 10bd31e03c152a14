package types

import "strconv"

// Classification places an entity in the taxonomy. Kind, Category and Type
// are required; Subtype is optional and, when blank, contributes no
// directory level.
type Classification struct {
	Kind     Kind   `json:"kind" yaml:"kind"`
	Category string `json:"category" yaml:"category"`
	Type     string `json:"type" yaml:"type"`
	Subtype  string `json:"subtype,omitempty" yaml:"subtype,omitempty"`
}

// VariantRef identifies one variant slot of a named, classified entity.
type VariantRef struct {
	Classification
	Name    string `json:"name" yaml:"name"`
	Variant string `json:"variant" yaml:"variant"`
}

// VariantIndex renders a zero-based variant index as a variant id.
func VariantIndex(i int) string {
	return strconv.Itoa(i)
}

// NewVariantRef is a convenience constructor for index-keyed variants.
func NewVariantRef(c Classification, name string, index int) VariantRef {
	return VariantRef{Classification: c, Name: name, Variant: VariantIndex(index)}
}

// Filter narrows an enumeration. Zero-valued fields match everything;
// non-zero fields match one directory segment case-insensitively.
type Filter struct {
	Kind     Kind   `json:"kind,omitempty"`
	Category string `json:"category,omitempty"`
	Type     string `json:"type,omitempty"`
	Subtype  string `json:"subtype,omitempty"`
}
