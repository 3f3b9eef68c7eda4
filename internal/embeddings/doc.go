// Package embeddings provides embedding generation via multiple providers.
//
// Supports FastEmbed (local ONNX, cgo builds only) and any OpenAI-compatible
// embeddings API through langchaingo. Providers can be rate limited, and
// report generation metrics through OpenTelemetry.
package embeddings
