package uploadlog

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

const (
	MaxLogSize        = 10 * 1024 * 1024 // 10MB
	MaxLogFiles       = 5
	LogFilePermission = 0o600
	LogDirPermission  = 0o700

	timestampLayout = "2006-01-02 15:04:05.000 UTC"
)

// Entry is the outcome of one file part of an upload request
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
	Album     string    `json:"album"`
	File      string    `json:"file"`
	State     string    `json:"state"`
	Bytes     int64     `json:"bytes"`
	Version   string    `json:"version,omitempty"`
	Error     string    `json:"error,omitempty"`
	Path      string    `json:"path"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
}

// entryRecord mirrors Entry with the timestamp as formatted text
type entryRecord struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id"`
	Album     string `json:"album"`
	File      string `json:"file"`
	State     string `json:"state"`
	Bytes     int64  `json:"bytes"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
	Path      string `json:"path"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(&entryRecord{
		Timestamp: e.Timestamp.UTC().Format(timestampLayout),
		RequestID: e.RequestID,
		Album:     e.Album,
		File:      e.File,
		State:     e.State,
		Bytes:     e.Bytes,
		Version:   e.Version,
		Error:     e.Error,
		Path:      e.Path,
		IP:        e.IP,
		UserAgent: e.UserAgent,
	})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var aux entryRecord
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	t, err := time.Parse(timestampLayout, aux.Timestamp)
	if err != nil {
		// RFC3339 for entries written by other tools
		t, err = time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to parse timestamp: %w", err)
		}
	}

	*e = Entry{
		Timestamp: t,
		RequestID: aux.RequestID,
		Album:     aux.Album,
		File:      aux.File,
		State:     aux.State,
		Bytes:     aux.Bytes,
		Version:   aux.Version,
		Error:     aux.Error,
		Path:      aux.Path,
		IP:        aux.IP,
		UserAgent: aux.UserAgent,
	}
	return nil
}
