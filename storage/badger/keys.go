package badger

import (
	"encoding/binary"
)

// Key prefixes for different data types
const (
	sourcePrefix       = "ksrc:"
	sourceURIPrefix    = "ksuri:"
	sourceTenantPrefix = "kstn:"
	recordPrefix       = "emrec:"
	checkpointPrefix   = "chkpt:"
)

// separator between variable-length key parts; core.ValidateTenantID and
// core.ValidateURI keep NUL out of tenant ids and URIs.
const sep = 0

// makeSourceKey generates a key for a source by ID.
func makeSourceKey(id string) []byte {
	return []byte(sourcePrefix + id)
}

// makeSourceURIKey generates the unique (tenant, uri) index key.
// Format: prefix tenant NUL uri
func makeSourceURIKey(tenantID, uri string) []byte {
	buf := make([]byte, 0, len(sourceURIPrefix)+len(tenantID)+1+len(uri))
	buf = append(buf, sourceURIPrefix...)
	buf = append(buf, tenantID...)
	buf = append(buf, sep)
	return append(buf, uri...)
}

// makeSourceTenantKey generates the tenant index key.
// Format: prefix tenant NUL id
func makeSourceTenantKey(tenantID, id string) []byte {
	return append(makePartialSourceTenantKey(tenantID), id...)
}

// makePartialSourceTenantKey generates the prefix for listing a tenant's sources.
func makePartialSourceTenantKey(tenantID string) []byte {
	buf := make([]byte, 0, len(sourceTenantPrefix)+len(tenantID)+1)
	buf = append(buf, sourceTenantPrefix...)
	buf = append(buf, tenantID...)
	return append(buf, sep)
}

// makeRecordKey generates a composite key for an embedding record.
// Format: prefix sourceID NUL chunkIndex recordID
func makeRecordKey(sourceID string, chunkIndex int, recordID string) []byte {
	buf := makePartialRecordKey(sourceID)
	// Write in BigEndian order so lexicographic sort follows chunk order
	buf = binary.BigEndian.AppendUint32(buf, uint32(chunkIndex))
	return append(buf, recordID...)
}

// makePartialRecordKey generates the prefix for a source's records.
func makePartialRecordKey(sourceID string) []byte {
	buf := make([]byte, 0, len(recordPrefix)+len(sourceID)+1+4+36)
	buf = append(buf, recordPrefix...)
	buf = append(buf, sourceID...)
	return append(buf, sep)
}

// makeCheckpointKey generates a key for a job checkpoint.
// Format: prefix job NUL tenant
func makeCheckpointKey(job, tenantID string) []byte {
	buf := make([]byte, 0, len(checkpointPrefix)+len(job)+1+len(tenantID))
	buf = append(buf, checkpointPrefix...)
	buf = append(buf, job...)
	buf = append(buf, sep)
	return append(buf, tenantID...)
}
