// Package gallery archives a batch of generated images under the output
// directory: numbered image files, a prompt log, an error log for images that
// could not be fetched, and a static HTML preview page.
package gallery
