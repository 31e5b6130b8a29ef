// Package feed reads pre-scored detection feeds for batch runs.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pyrovision/pyrovision/internal/core/domain"
)

// FileSource reads a JSON array of feed records from disk. The file is
// re-read on every Load.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file" }

// Load fails only when the file is unreadable or not a JSON array. Elements
// that do not decode into a record are reported individually.
func (s *FileSource) Load(_ context.Context) (domain.FeedSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return domain.FeedSnapshot{}, fmt.Errorf("read feed %s: %w", s.path, err)
	}
	return ParseJSON(data)
}

// ParseJSON decodes a feed document.
func ParseJSON(data []byte) (domain.FeedSnapshot, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return domain.FeedSnapshot{}, fmt.Errorf("decode feed: %w", err)
	}

	var snap domain.FeedSnapshot
	for i, elem := range raw {
		var rec domain.FeedRecord
		if err := json.Unmarshal(elem, &rec); err != nil {
			snap.Rejected = append(snap.Rejected, domain.RecordError{
				Index:  i,
				Reason: fmt.Sprintf("%v: %v", domain.ErrMalformedRecord, err),
			})
			continue
		}
		snap.Records = append(snap.Records, rec)
	}
	return snap, nil
}
