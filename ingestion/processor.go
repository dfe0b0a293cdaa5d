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

package ingestion

import (
	"context"

	"github.com/poiesic/lorekeep/core"
)

// job carries one source through the processors of a single ingestion run.
type job struct {
	source   *core.KnowledgeSource
	title    string
	chunks   []string
	enriched []string
	records  []*core.EmbeddingRecord
}

// processor is one pass over a job's chunks. Passes run in order and each
// completes before the next begins.
type processor interface {
	// name identifies the pass in logs and errors.
	name() string

	// process reads the job's output of earlier passes and fills in its own.
	process(ctx context.Context, j *job) error
}
