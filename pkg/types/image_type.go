package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ImageType is the role of one image file inside a variant directory.
type ImageType int

// Image types. ImageToken is the overhead battle-map image, also called
// TopDown; its file stem is "top-down".
const (
	ImageUnknown ImageType = iota
	ImageToken
	ImagePortrait
	ImageMiniature
	ImageCloseUp
	ImagePhoto
)

// ImageTopDown is the alternate name of ImageToken.
const ImageTopDown = ImageToken

// Extension of every image file written by the store.
const ImageExt = ".png"

type imageTypeInfo struct {
	name string // display name
	stem string // canonical file stem
}

var imageTypeInfos = [...]imageTypeInfo{
	ImageUnknown:   {},
	ImageToken:     {name: "token", stem: "top-down"},
	ImagePortrait:  {name: "portrait", stem: "portrait"},
	ImageMiniature: {name: "miniature", stem: "miniature"},
	ImageCloseUp:   {name: "close-up", stem: "close-up"},
	ImagePhoto:     {name: "photo", stem: "photo"},
}

// stemAliases maps non-canonical stems to the image type they denote.
var stemAliases = map[string]ImageType{
	"token": ImageToken,
}

// ImageTypes lists every valid image type in declaration order.
func ImageTypes() []ImageType {
	return []ImageType{ImageToken, ImagePortrait, ImageMiniature, ImageCloseUp, ImagePhoto}
}

// Valid reports whether t is a member of the vocabulary.
func (t ImageType) Valid() bool {
	return t > ImageUnknown && t <= ImagePhoto
}

// String returns the display name of the image type.
func (t ImageType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("image(%d)", int(t))
	}
	return imageTypeInfos[t].name
}

// Stem returns the canonical file stem, e.g. "top-down". It returns "" for
// an invalid image type.
func (t ImageType) Stem() string {
	if !t.Valid() {
		return ""
	}
	return imageTypeInfos[t].stem
}

// FileName returns the canonical file name, e.g. "top-down.png".
func (t ImageType) FileName() string {
	if !t.Valid() {
		return ""
	}
	return imageTypeInfos[t].stem + ImageExt
}

// ImageTypeFromStem resolves a file stem to its image type. Matching is
// case-insensitive; "token" is accepted as an alias of "top-down".
func ImageTypeFromStem(stem string) (ImageType, bool) {
	s := strings.ToLower(stem)
	for _, t := range ImageTypes() {
		if imageTypeInfos[t].stem == s {
			return t, true
		}
	}
	if t, ok := stemAliases[s]; ok {
		return t, true
	}
	return ImageUnknown, false
}

// ParseImageType resolves a user-supplied image type name such as "TopDown",
// "top-down", "token", "close_up" or "CloseUp".
func ParseImageType(s string) (ImageType, error) {
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "token", "topdown":
		return ImageToken, nil
	case "portrait":
		return ImagePortrait, nil
	case "miniature":
		return ImageMiniature, nil
	case "closeup":
		return ImageCloseUp, nil
	case "photo":
		return ImagePhoto, nil
	}
	return ImageUnknown, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownImageType, s, validImageTypeNames())
}

func validImageTypeNames() string {
	names := make([]string, 0, len(imageTypeInfos))
	for _, t := range ImageTypes() {
		names = append(names, t.String())
	}
	return strings.Join(names, ", ")
}

// MarshalText implements encoding.TextMarshaler.
func (t ImageType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ImageType) UnmarshalText(b []byte) error {
	parsed, err := ParseImageType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ImageTypeSet is a set of image types.
type ImageTypeSet uint8

// NewImageTypeSet returns a set holding the given types. Invalid types are
// ignored.
func NewImageTypeSet(types ...ImageType) ImageTypeSet {
	var s ImageTypeSet
	for _, t := range types {
		s = s.Add(t)
	}
	return s
}

// Add returns s with t added.
func (s ImageTypeSet) Add(t ImageType) ImageTypeSet {
	if !t.Valid() {
		return s
	}
	return s | 1<<uint(t)
}

// Has reports whether t is in s.
func (s ImageTypeSet) Has(t ImageType) bool {
	return t.Valid() && s&(1<<uint(t)) != 0
}

// Len returns the number of types in s.
func (s ImageTypeSet) Len() int {
	n := 0
	for _, t := range ImageTypes() {
		if s.Has(t) {
			n++
		}
	}
	return n
}

// Types returns the members of s in declaration order.
func (s ImageTypeSet) Types() []ImageType {
	out := make([]ImageType, 0, s.Len())
	for _, t := range ImageTypes() {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// String renders the set as a comma-separated list of display names.
func (s ImageTypeSet) String() string {
	types := s.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}

// MarshalJSON renders the set as a JSON array of display names.
func (s ImageTypeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Types())
}
