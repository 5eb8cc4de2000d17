// Package output provides JSONL output for copy runs.
//
// Output is structured as typed record envelopes containing copied
// artifacts, per-unit errors, and the final summary. Each line is a
// self-contained JSON object that can be parsed independently, suitable
// for ingestion by build-log processors.
package output

import (
	"encoding/json"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: goferry.<type>.v<version>
const (
	// TypeCopy identifies copied-artifact records.
	TypeCopy = "goferry.copy.v1"

	// TypeError identifies error records.
	TypeError = "goferry.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "goferry.summary.v1"
)

// Error code constants for ErrorRecord.
const (
	ErrCodeResolve  = "resolve_failed"
	ErrCodeSelect   = "no_matching_build"
	ErrCodeProfile  = "profile_unavailable"
	ErrCodeDownload = "download_failed"
	ErrCodeLink     = "fingerprint_link_failed"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "goferry.copy.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID is the correlation ID for this copy run.
	RunID string `json:"run_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// CopyRecord is the data payload for one copied artifact.
type CopyRecord struct {
	// Source is the source build in "job #number" form.
	Source string `json:"source"`

	// Name is the artifact's manifest-relative path.
	Name string `json:"name"`

	// Digest is the content digest recorded at upload time.
	Digest string `json:"digest"`

	// Target is the directory the artifact was written under.
	Target string `json:"target"`
}

// ErrorRecord is the data payload for a failure.
type ErrorRecord struct {
	// Code classifies the failure (e.g., "profile_unavailable").
	Code string `json:"code"`

	// Message is the human-readable diagnostic.
	Message string `json:"message"`

	// Source is the source build the failure applies to, if any.
	Source string `json:"source,omitempty"`
}

// SummaryRecord is the data payload for the final run summary.
type SummaryRecord struct {
	// Project is the expanded project reference that was copied from.
	Project string `json:"project"`

	// UnitsTotal is the number of copy units the expansion produced.
	UnitsTotal int `json:"units_total"`

	// UnitsSucceeded is the number of units that copied without error.
	UnitsSucceeded int `json:"units_succeeded"`

	// ArtifactsCopied is the total artifact count across all units.
	ArtifactsCopied int `json:"artifacts_copied"`

	// Success is the aggregate step result.
	Success bool `json:"success"`

	// DurationMS is the wall-clock run duration in milliseconds.
	DurationMS int64 `json:"duration_ms"`
}
