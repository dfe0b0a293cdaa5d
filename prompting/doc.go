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


// Package prompting derives an assistant system prompt from crawled pages.
//
// The prompt speaks for the site owner, keeps answers short and points the
// assistant at the knowledge base. With a completer the drafted prompt is
// rewritten by the model; without one, or when the model fails, the draft
// is used as is.
package prompting
