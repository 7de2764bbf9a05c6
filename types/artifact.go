// Package types defines the core domain model for the orchestrator:
// artifacts, modules, chains, tasks, results, and chain runs.
package types

import "time"

// FileType is a detected artifact type per the dispatcher selection table.
type FileType string

const (
	FileTypeAPK    FileType = "apk"
	FileTypeIPA    FileType = "ipa"
	FileTypeZip    FileType = "zip"
	FileTypeSource FileType = "source"
)

// Valid reports whether f is one of the recognized file types.
func (f FileType) Valid() bool {
	switch f {
	case FileTypeAPK, FileTypeIPA, FileTypeZip, FileTypeSource:
		return true
	}
	return false
}

// Artifact is a content-addressed artifact record. Identity is the
// fingerprint; the record is immutable after ingestion.
type Artifact struct {
	Fingerprint    string    `json:"fingerprint"`
	OriginalName   string    `json:"original_name"`
	Aliases        []string  `json:"aliases,omitempty"`
	Size           int64     `json:"size"`
	DetectedType   FileType  `json:"detected_type"`
	IngestedAt     time.Time `json:"ingested_at"`
	ExtractedRoot  string    `json:"extracted_root"`
}
