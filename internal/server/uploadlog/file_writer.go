package uploadlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/openmined/photobox/internal/utils"
)

const currentLogName = "uploads.log"

type albumLogWriter struct {
	logDir      string
	maxSize     int64
	file        *os.File
	currentSize int64
	rotations   int
	mu          sync.Mutex
}

func newAlbumLogWriter(logDir string) (*albumLogWriter, error) {
	if err := utils.EnsureDir(logDir, LogDirPermission); err != nil {
		return nil, fmt.Errorf("failed to create album log directory: %w", err)
	}

	w := &albumLogWriter{logDir: logDir, maxSize: MaxLogSize}
	if err := w.openLogFile(); err != nil {
		return nil, err
	}
	return w, nil
}

// writeEntries appends entries as JSON lines, rotating first if they would overflow maxSize
func (w *albumLogWriter) writeEntries(entries []Entry) error {
	var data []byte
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal log entry: %w", err)
		}
		data = append(data, line...)
		data = append(data, '\n')
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentSize > 0 && w.currentSize+int64(len(data)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return fmt.Errorf("failed to rotate log: %w", err)
		}
	}

	n, err := w.file.Write(data)
	w.currentSize += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}
	return nil
}

func (w *albumLogWriter) openLogFile() error {
	logPath := filepath.Join(w.logDir, currentLogName)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, LogFilePermission)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	w.file = file
	w.currentSize = stat.Size()
	return nil
}

// rotate moves the current file aside and keeps at most MaxLogFiles rotated files
func (w *albumLogWriter) rotate() error {
	if w.file != nil {
		w.file.Close()
	}

	w.rotations++
	rotated := fmt.Sprintf("uploads_%s_%04d.log", time.Now().UTC().Format("20060102_150405.000000"), w.rotations)
	if err := os.Rename(filepath.Join(w.logDir, currentLogName), filepath.Join(w.logDir, rotated)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rename log file: %w", err)
	}

	if err := w.cleanOldLogs(); err != nil {
		return fmt.Errorf("failed to clean old logs: %w", err)
	}

	return w.openLogFile()
}

func (w *albumLogWriter) cleanOldLogs() error {
	rotated, err := rotatedLogs(w.logDir)
	if err != nil {
		return err
	}

	if len(rotated) <= MaxLogFiles {
		return nil
	}

	for _, name := range rotated[:len(rotated)-MaxLogFiles] {
		if err := os.Remove(filepath.Join(w.logDir, name)); err != nil {
			return fmt.Errorf("failed to remove old log file: %w", err)
		}
	}
	return nil
}

func (w *albumLogWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// rotatedLogs returns rotated log file names, oldest first
func rotatedLogs(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, f := range files {
		if f.IsDir() || f.Name() == currentLogName || filepath.Ext(f.Name()) != ".log" {
			continue
		}
		names = append(names, f.Name())
	}
	sort.Strings(names)
	return names, nil
}
