// Package ports defines the interfaces external adapters implement:
// object storage, search, LLM providers, caching and event fan-out.
// Services depend on these so tests can substitute fakes.
package ports
