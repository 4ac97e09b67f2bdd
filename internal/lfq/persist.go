package lfq

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/klauspost/pgzip"
)

// PersistedIndex is the on-disk (gob+gzip) representation of one spectral
// file's MS1 peak index and scan registry, built so a later run's
// match-between-runs pass can reuse it without re-reading the raw spectra.
type PersistedIndex struct {
	RunID        string
	SpectralFile string
	Buckets      map[int]map[int]IndexedPeak
	Scans        []ScanInfo
}

// SnapshotIndex captures an index and its scan registry for persistence.
func SnapshotIndex(runID, spectralFile string, idx *PeakIndex, registry *ScanRegistry) *PersistedIndex {
	buckets := make(map[int]map[int]IndexedPeak, len(idx.buckets))
	for b, byScan := range idx.buckets {
		cp := make(map[int]IndexedPeak, len(byScan))
		for scanIndex, peak := range byScan {
			cp[scanIndex] = peak
		}
		buckets[b] = cp
	}
	return &PersistedIndex{
		RunID:        runID,
		SpectralFile: spectralFile,
		Buckets:      buckets,
		Scans:        append([]ScanInfo{}, registry.Scans...),
	}
}

// WriteIndex gob-encodes p and writes it gzip-compressed to w.
func WriteIndex(w io.Writer, p *PersistedIndex) error {
	gz := pgzip.NewWriter(w)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(p); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

// ReadIndex reads and gob-decodes a PersistedIndex previously written by
// WriteIndex. Round-tripping through WriteIndex/ReadIndex must be
// bit-identical in the fields that matter for resuming MBR (spec.md §8).
func ReadIndex(r io.Reader) (*PersistedIndex, error) {
	gz, err := pgzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	var p PersistedIndex
	dec := gob.NewDecoder(gz)
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Restore rebuilds a PeakIndex and ScanRegistry from a PersistedIndex.
func (p *PersistedIndex) Restore() (*PeakIndex, *ScanRegistry) {
	idx := &PeakIndex{buckets: make(map[int]map[int]IndexedPeak, len(p.Buckets))}
	for b, byScan := range p.Buckets {
		cp := make(map[int]IndexedPeak, len(byScan))
		for scanIndex, peak := range byScan {
			cp[scanIndex] = peak
		}
		idx.buckets[b] = cp
	}
	registry := &ScanRegistry{Scans: append([]ScanInfo{}, p.Scans...)}
	return idx, registry
}

// EncodeIndex is a convenience wrapper returning the gzip-compressed gob
// bytes directly, used by callers that persist to something other than a
// stream (e.g. an in-memory cache entry).
func EncodeIndex(p *PersistedIndex) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteIndex(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeIndex is the inverse of EncodeIndex.
func DecodeIndex(data []byte) (*PersistedIndex, error) {
	return ReadIndex(bytes.NewReader(data))
}
