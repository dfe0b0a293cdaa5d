// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ai provides abstractions for the model services Lorekeep talks to.
//
// Two interfaces cover everything the ingestion and retrieval paths need:
//
//   - Embedder: turns text into vectors
//   - Completer: produces a short chat completion (used for chunk summaries
//     and system prompt drafting)
//
// AIProvider bundles both so that callers configure one object.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo
//   - ai/mock: test doubles with call counters and injectable behavior
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can reach CallCount and the WithXFunc hooks.
//
// # Rate limiting
//
// RateLimiter wraps golang.org/x/time/rate. The openai provider waits on it
// before every request when Config.RequestsPerSecond is set.
package ai
