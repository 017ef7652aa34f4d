// Package illustrate generates one image per story section. It derives a
// shared story context first so prompts stay consistent, then renders each
// prompt through the image backend at a bounded request rate, streaming
// progress events as it goes.
package illustrate
