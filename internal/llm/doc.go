// Package llm provides the language model collaborators of the capture workflow:
// draft extraction, reply intent classification, and advice generation.
// It supports OpenAI and Anthropic with retry logic, rate limiting, and an extraction cache.
package llm
