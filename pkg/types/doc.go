// Package types defines the taxonomy vocabulary, value types, and standard
// errors for the hoard image store.
//
// Kinds and image types are closed enumerations. Classifications, variant
// references and filters are small value structs; the store validates them
// before any filesystem access.
package types
