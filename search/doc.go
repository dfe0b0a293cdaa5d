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


// Package search answers questions against a tenant's knowledge.
//
// The Retriever embeds a question with the same embedding client used at
// ingestion time and returns the closest chunks from the tenant's partition
// of the vector index, best first. Chunks carry the "[Context: ...]" prefix
// written by the enricher, so callers can paste them straight into a prompt.
package search
