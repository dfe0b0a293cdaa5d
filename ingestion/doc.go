// Package ingestion turns documents into searchable knowledge.
//
// The Pipeline owns the lifecycle of a knowledge source:
//   - create the source, or reset an existing one with the same URI
//   - split the body into overlapping chunks
//   - prefix every chunk with a short context summary (enrich pass)
//   - embed every enriched chunk, store its vector and an embedding record
//     (embed pass)
//   - mark the source READY, or roll back and mark it FAILED
//
// Both passes run on a bounded worker pool, and the embed pass starts only
// after every chunk is enriched. Deleting a source removes its vectors, then
// its records, then the source row.
package ingestion
