// Package html provides a Normaliser implementation for HTML documents.
// It parses the markup with goquery, drops non-content elements and
// returns the readable text with one line per block element.
package html
