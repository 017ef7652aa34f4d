// Package textutil provides small text helpers shared by ingestion and the
// image gallery: file name sanitization for downloaded media titles,
// lowercase path tokens, and display title casing.
package textutil
