package types

import (
	"fmt"
	"strings"
)

// Scheme selects the on-disk directory layout.
type Scheme string

// Supported schemes.
const (
	// SchemeKind lays entities out as kind/category/type/[subtype]/name/variant.
	SchemeKind Scheme = "kind"
	// SchemeGenre inserts a first-letter bucket before the name directory.
	SchemeGenre Scheme = "genre"
)

// ParseScheme resolves a scheme name. An empty name selects SchemeKind.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case "", SchemeKind:
		return SchemeKind, nil
	case SchemeGenre:
		return SchemeGenre, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScheme, s)
}

// Config holds the parameters for opening a store.
type Config struct {
	Root   string `json:"root" yaml:"root"`
	Scheme Scheme `json:"scheme" yaml:"scheme"`
}

// Validate checks that the Config is well-formed. A root that does not exist
// yet is accepted.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return ErrRootRequired
	}
	if _, err := ParseScheme(string(c.Scheme)); err != nil {
		return err
	}
	return nil
}
