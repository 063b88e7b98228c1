// Package llm provides the shared client for hosted text and vision models.
//
// The client speaks the OpenAI-compatible chat completions wire format with
// response_format forced to json_object. Vision requests attach the image as
// an inline base64 data URL content part. Transient HTTP failures (408, 429,
// 5xx, network timeouts) are retried with exponential backoff honoring
// Retry-After; everything else fails fast.
package llm
