// Package storygen turns themes and stories into the text inputs of the
// audio and image pipelines: short stories, narration/dialogue scripts,
// podcast dialogue, image prompts, and Chinese translations.
package storygen
