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

package core

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidateKnowledgeSource validates a KnowledgeSource according to domain rules.
//
// Validation rules:
//   - TenantID must not be blank or contain control characters
//   - URI, when set, must not contain control characters
//   - Label must not be blank
//   - Kind must be URL, TEXT or FILE
//   - Status must be PENDING, READY or FAILED
//
// NOT validated (assigned by storage):
//   - ID
//   - CreatedAt / UpdatedAt
func ValidateKnowledgeSource(source *KnowledgeSource) error {
	if source == nil {
		return fmt.Errorf("%w: source is nil", ErrInvalidSource)
	}

	if err := ValidateTenantID(source.TenantID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}

	if source.URI != nil {
		if err := ValidateURI(*source.URI); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSource, err)
		}
	}

	if strings.TrimSpace(source.Label) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSource, ErrEmptyLabel)
	}

	if err := ValidateSourceKind(source.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}

	if err := ValidateSourceStatus(source.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}

	return nil
}

// ValidateTenantID rejects blank tenant ids and ids with control characters.
// Storage keys use NUL as a separator, so a tenant id must never carry one.
func ValidateTenantID(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return ErrTenantRequired
	}
	if hasControl(tenantID) {
		return fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}
	return nil
}

// ValidateURI rejects URIs with control characters. An empty URI is valid.
func ValidateURI(uri string) error {
	if hasControl(uri) {
		return fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return nil
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

// ValidateSourceKind validates that a SourceKind has a known value.
func ValidateSourceKind(kind SourceKind) error {
	switch kind {
	case SourceKindURL, SourceKindText, SourceKindFile:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSourceKind, kind)
}

// ValidateSourceStatus validates that a SourceStatus has a known value.
func ValidateSourceStatus(status SourceStatus) error {
	switch status {
	case SourceStatusPending, SourceStatusReady, SourceStatusFailed:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSourceStatus, status)
}
