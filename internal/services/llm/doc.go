// Package llm provides an OpenRouter-compatible chat client used for story,
// script, podcast, and image-prompt generation.
//
// Requests go through the shared gateway, which applies the generation time
// limit and classifies failures. The client itself retries HTTP 408/429/5xx
// responses and empty completions with exponential backoff (base 1s, max
// 10s, up to 5 attempts by default), honouring Retry-After when the provider
// sends it. An unreachable provider, an exhausted time limit, or context
// cancellation ends the call immediately.
//
// DecodeLLMJSON tolerates code fences and prose around a JSON payload, which
// models routinely add even when JSON output was requested.
package llm
