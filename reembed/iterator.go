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


package reembed

import (
	"context"
	"sort"

	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/storage"
)

const (
	// DefaultBatchSize is the default number of records embedded per request
	DefaultBatchSize = 100
)

// SourceIterator walks a tenant's ready sources and their records.
type SourceIterator struct {
	sources   storage.SourceRepository
	records   storage.EmbeddingRepository
	batchSize int
}

// NewSourceIterator creates a new source iterator.
// batchSize: number of records handed to fn at once (<= 0 means DefaultBatchSize)
func NewSourceIterator(sources storage.SourceRepository, records storage.EmbeddingRepository, batchSize int) *SourceIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &SourceIterator{
		sources:   sources,
		records:   records,
		batchSize: batchSize,
	}
}

// Sources returns the READY sources of tenantID whose id sorts after
// afterID, in id order. An empty afterID returns all of them.
func (it *SourceIterator) Sources(ctx context.Context, tenantID, afterID string) ([]*core.KnowledgeSource, error) {
	all, err := it.sources.ListSources(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	ready := make([]*core.KnowledgeSource, 0, len(all))
	for _, source := range all {
		if source.Status == core.SourceStatusReady && source.ID > afterID {
			ready = append(ready, source)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].ID < ready[j].ID })
	return ready, nil
}

// ForEachBatch calls fn with the source's records in chunk order, at most
// batchSize at a time. Iteration stops on the first error from fn.
// Context cancellation is checked between batches.
func (it *SourceIterator) ForEachBatch(ctx context.Context, source *core.KnowledgeSource, fn func([]*core.EmbeddingRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := it.records.GetEmbeddingRecords(ctx, source.ID)
	if err != nil {
		return err
	}

	for i := 0; i < len(records); i += it.batchSize {
		end := min(i+it.batchSize, len(records))
		if err := fn(records[i:end]); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
