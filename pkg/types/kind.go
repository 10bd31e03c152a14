package types

import (
	"fmt"
	"strings"
)

// Kind is the top-level taxonomy bucket of an entity.
type Kind int

// Kind values. KindUnknown is the zero value and is never valid for a
// persisted entity; in a Filter it means "any kind".
const (
	KindUnknown Kind = iota
	KindCharacter
	KindCreature
	KindObject
	KindEffect
)

var kindNames = [...]string{
	KindUnknown:   "",
	KindCharacter: "character",
	KindCreature:  "creature",
	KindObject:    "object",
	KindEffect:    "effect",
}

// Kinds lists every valid kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindCharacter, KindCreature, KindObject, KindEffect}
}

// String returns the lowercase directory name of the kind.
func (k Kind) String() string {
	if !k.Valid() {
		if k == KindUnknown {
			return ""
		}
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is a member of the vocabulary.
func (k Kind) Valid() bool {
	return k > KindUnknown && k <= KindEffect
}

// ImageTypes returns the image types the generation workflow produces for
// entities of this kind. The store itself accepts any image type for any kind.
func (k Kind) ImageTypes() []ImageType {
	switch k {
	case KindCharacter, KindCreature:
		return []ImageType{ImageToken, ImagePortrait, ImageCloseUp}
	case KindObject, KindEffect:
		return []ImageType{ImageToken}
	default:
		return nil
	}
}

// ParseKind resolves a kind name case-insensitively. Surrounding whitespace
// is ignored.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds() {
		if kindNames[k] == name {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty value decodes
// to KindUnknown.
func (k *Kind) UnmarshalText(b []byte) error {
	if strings.TrimSpace(string(b)) == "" {
		*k = KindUnknown
		return nil
	}
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
