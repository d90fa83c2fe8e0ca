// Package openaicompat provides a shared base implementation for every
// provider speaking the OpenAI Chat Completions dialect.
//
// OpenAI proper, Azure-style gateways, OpenRouter, vLLM, and llama.cpp
// server share the same API format. Instead of duplicating HTTP handling,
// message conversion, and error mapping per vendor, callers configure one
// Provider and only override what differs:
//
//   - Provider name and default model
//   - Base URL and endpoint paths
//   - Auth header (Bearer by default, custom header name for Azure-style APIs)
//   - Extra static headers (e.g. OpenRouter attribution headers)
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "openrouter",
//	    APIKey:       key,
//	    BaseURL:      "https://openrouter.ai/api",
//	    DefaultModel: "anthropic/claude-3.5-sonnet",
//	    ExtraHeaders: map[string]string{"HTTP-Referer": "https://example.com"},
//	}, logger)
//
// OpenAIConfigFromEnv wires OpenAI proper from OPENAI_API_KEY, OPENAI_MODEL,
// OPENAI_BASE_URL, and OPENAI_TIMEOUT_SECONDS.
package openaicompat
