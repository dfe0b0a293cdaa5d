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

// Package storage provides the relational storage abstraction for lorekeep.
//
// Repositories hold knowledge sources, the embedding records that link
// chunks to vector index entries, and job checkpoints. Two backends exist:
//
//   - storage/badger: embedded key-value store, also used in-memory by tests
//   - storage/sql: gorm over SQLite, PostgreSQL or MySQL
//
// # Constructor Return Type Pattern
//
// Backend packages expose constructors that return concrete types; callers
// hold them through the interfaces in this package:
//
//	sources, records, checkpoints, backend, err := badger.NewMemoryRepositories()
//
// # Transactions
//
// WithTransaction stores the transaction in the context it hands to fn.
// Repository calls made with that context join it, so a multi-row write such
// as "delete a source's records and reset the source" commits or rolls back
// as one unit:
//
//	err := sources.WithTransaction(ctx, func(ctx context.Context) error {
//	    if _, err := records.DeleteEmbeddingRecords(ctx, id); err != nil {
//	        return err
//	    }
//	    return sources.UpdateSourceStatus(ctx, id, core.SourceStatusPending, nil)
//	})
//
// Sources and records of one backend share the transaction; mixing backends
// inside one transaction is not supported.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines. A transaction context must not
// be shared between goroutines.
package storage
