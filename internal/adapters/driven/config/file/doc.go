// Package file provides the file-based settings store.
//
// Settings live in a TOML file, by default ~/.hybridsearch/config.toml.
// Values missing from the file keep their defaults, and every load and save
// is validated.
package file
