// Package llm provides an OpenRouter chat client used as the text oracle for
// scene planning, scene code synthesis, and code correction.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send a prompt, receive the raw text reply.
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON: parse JSON out of a reply that may carry code fences.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty replies, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). Context cancellation aborts retries immediately. These retries
// cover transport hiccups only; a failed completion is reported to the caller
// and the repair loop decides whether to spend another attempt.
package llm
