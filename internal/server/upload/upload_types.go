package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/openmined/photobox/internal/server/album"
)

const (
	FieldFile  = "file"
	FieldFiles = "files"
)

var (
	ErrNoFilePart = errors.New("no file part in request")
	ErrMalformed  = errors.New("malformed multipart body")
)

// Uploader commits one photo from a byte stream
type Uploader interface {
	Upload(ctx context.Context, albumName, fileName string, body io.Reader) (*album.UploadResult, error)
}

// ===================================================================================================

type PartState int

const (
	StateQueued PartState = iota
	StateStreaming
	StateCommitted
	StateFailed
	StateCancelled
)

func (s PartState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateStreaming:
		return "streaming"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s PartState) Terminal() bool {
	return s == StateCommitted || s == StateFailed || s == StateCancelled
}

func (s PartState) canTransition(to PartState) bool {
	switch s {
	case StateQueued:
		return to == StateStreaming || to == StateFailed || to == StateCancelled
	case StateStreaming:
		return to == StateCommitted || to == StateFailed || to == StateCancelled
	default:
		return false
	}
}

// ===================================================================================================

type PartResult struct {
	FileName string
	State    PartState
	Bytes    int64
	Version  string
	Err      error
}

// Report tracks every file part of one upload request
type Report struct {
	Album string

	mu    sync.Mutex
	parts []*PartResult
}

func newReport(albumName string) *Report {
	return &Report{Album: albumName}
}

// Parts returns a snapshot of the part results in arrival order
func (r *Report) Parts() []PartResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	parts := make([]PartResult, len(r.parts))
	for i, p := range r.parts {
		parts[i] = *p
	}
	return parts
}

// Count returns the number of parts in the given state
func (r *Report) Count(state PartState) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, p := range r.parts {
		if p.State == state {
			n++
		}
	}
	return n
}

func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.parts)
}

func (r *Report) add(fileName string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.parts = append(r.parts, &PartResult{FileName: fileName, State: StateQueued})
	slog.Debug("part queued", "album", r.Album, "file", fileName, "index", len(r.parts)-1)
	return len(r.parts) - 1
}

// transition moves part idx to state and lets update fill in the result. Invalid moves are ignored.
func (r *Report) transition(idx int, to PartState, update func(p *PartResult)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.parts[idx]
	if !p.State.canTransition(to) {
		return false
	}

	from := p.State
	p.State = to
	if update != nil {
		update(p)
	}
	slog.Debug("part state", "album", r.Album, "file", p.FileName, "from", from, "to", to)
	return true
}
