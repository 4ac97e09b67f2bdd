package lfq

import "github.com/google/uuid"

// RunMetadata identifies one quantification run, stamped onto every
// PersistedIndex so a later match-between-runs pass can tell which run
// produced a cached index.
type RunMetadata struct {
	RunID        string
	SpectraFiles []string
}

// NewRunMetadata mints a fresh run ID for the given spectral files.
func NewRunMetadata(spectraFiles []string) RunMetadata {
	return RunMetadata{
		RunID:        uuid.NewString(),
		SpectraFiles: append([]string{}, spectraFiles...),
	}
}
