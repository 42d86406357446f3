// Package inference describes screenshots with an OpenAI-compatible vision
// chat completions endpoint such as LM Studio, Ollama, or vLLM.
//
// Transient failures (HTTP 408/429/5xx, transport timeouts, empty content) are
// retried with exponential backoff inside a single Describe call. The
// workflow never retries a run.
package inference
