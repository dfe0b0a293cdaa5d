// Package reembed recomputes the vectors of stored chunks after an embedding
// model change.
//
// Every READY source of a tenant is visited in id order. Its records are
// embedded again in batches, with retry and exponential backoff, and the new
// vectors are upserted under the records' existing vector ids, so records and
// index stay linked without touching the relational store. Progress is
// written to an io.Writer and checkpointed after each source, so a run that
// is interrupted resumes where it stopped.
package reembed
