package uploadlog

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/openmined/photobox/internal/server/album"
	"github.com/openmined/photobox/internal/server/upload"
	"github.com/openmined/photobox/internal/utils"
)

var ErrClosed = errors.New("upload log closed")

// UploadLogger keeps a JSON lines history of upload outcomes, one directory per album
type UploadLogger struct {
	baseDir string

	mu      sync.Mutex
	writers map[string]*albumLogWriter
	closed  bool
}

func New(baseDir string) (*UploadLogger, error) {
	if err := utils.EnsureDir(baseDir, LogDirPermission); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &UploadLogger{
		baseDir: baseDir,
		writers: make(map[string]*albumLogWriter),
	}, nil
}

// Record writes one entry per part of report. Failures are logged, never returned to the request.
func (l *UploadLogger) Record(ctx *gin.Context, report *upload.Report) {
	parts := report.Parts()
	if len(parts) == 0 {
		return
	}

	now := time.Now().UTC()
	requestID := uuid.NewString()
	entries := make([]Entry, 0, len(parts))
	for _, p := range parts {
		entry := Entry{
			Timestamp: now,
			RequestID: requestID,
			Album:     report.Album,
			File:      p.FileName,
			State:     p.State.String(),
			Bytes:     p.Bytes,
			Version:   p.Version,
			Path:      ctx.Request.URL.Path,
			IP:        ctx.ClientIP(),
			UserAgent: ctx.Request.UserAgent(),
		}
		if p.Err != nil {
			entry.Error = p.Err.Error()
		}
		entries = append(entries, entry)
	}

	if err := l.write(report.Album, entries); err != nil {
		slog.Error("upload log write", "album", report.Album, "parts", len(entries), "error", err)
	}
}

func (l *UploadLogger) write(albumName string, entries []Entry) error {
	key := albumKey(albumName)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	w, ok := l.writers[key]
	if !ok {
		var err error
		w, err = newAlbumLogWriter(l.albumDir(key))
		if err != nil {
			l.mu.Unlock()
			return err
		}
		l.writers[key] = w
	}
	l.mu.Unlock()

	return w.writeEntries(entries)
}

// Entries returns up to limit of the most recent entries of an album, oldest first
func (l *UploadLogger) Entries(albumName string, limit int) ([]Entry, error) {
	if limit <= 0 {
		return []Entry{}, nil
	}

	key := albumKey(albumName)
	dir := l.albumDir(key)

	// hold the writer so a concurrent rotation cannot move files mid read
	l.mu.Lock()
	w := l.writers[key]
	l.mu.Unlock()
	if w != nil {
		w.mu.Lock()
		defer w.mu.Unlock()
	}

	rotated, err := rotatedLogs(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	files := append(rotated, currentLogName)

	entries := make([]Entry, 0, limit)
	for i := len(files) - 1; i >= 0 && len(entries) < limit; i-- {
		fileEntries, err := readLogFile(filepath.Join(dir, files[i]))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			slog.Warn("upload log read", "file", files[i], "error", err)
			continue
		}

		if need := limit - len(entries); len(fileEntries) > need {
			fileEntries = fileEntries[len(fileEntries)-need:]
		}
		entries = append(fileEntries, entries...)
	}

	return entries, nil
}

func (l *UploadLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	var errs []error
	for _, w := range l.writers {
		errs = append(errs, w.close())
	}
	return errors.Join(errs...)
}

// albumKey names the writer and the directory of an album. Names that sanitize alike share both.
func albumKey(albumName string) string {
	return album.Sanitize(albumName)
}

func (l *UploadLogger) albumDir(key string) string {
	return filepath.Join(l.baseDir, key)
}

// readLogFile decodes every JSON line of path, skipping lines that do not parse
func readLogFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}
