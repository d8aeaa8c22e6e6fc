package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openmined/photobox/internal/server/album"
	"github.com/openmined/photobox/internal/server/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type formPart struct {
	field    string
	fileName string
	data     []byte
}

func filePart(field, fileName string, data []byte) formPart {
	return formPart{field: field, fileName: fileName, data: data}
}

func textField(field, value string) formPart {
	return formPart{field: field, data: []byte(value)}
}

func multipartBody(t *testing.T, parts ...formPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.fileName == "" {
			require.NoError(t, w.WriteField(p.field, string(p.data)))
			continue
		}
		fw, err := w.CreateFormFile(p.field, p.fileName)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.Boundary()
}

func multipartForm(t *testing.T, parts ...formPart) *Form {
	t.Helper()
	body, boundary := multipartBody(t, parts...)
	return NewForm(body, boundary)
}

func photo(size int, seed byte) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = seed + byte(i%251)
	}
	return data
}

func setupAlbum(t *testing.T) (*blob.MemoryBackend, *album.Service) {
	t.Helper()
	backend := blob.NewMemoryBackend()
	store := blob.NewBlobServiceWithBackend(backend)
	svc := album.NewService(store, album.WithUploadOptions(blob.UploadOptions{
		BlockSize:      64,
		MaxConcurrency: 2,
		Overwrite:      true,
	}))
	_, err := svc.Create(context.Background(), "Goa")
	require.NoError(t, err)
	return backend, svc
}

type uploaderFunc func(ctx context.Context, albumName, fileName string, body io.Reader) (*album.UploadResult, error)

func (f uploaderFunc) Upload(ctx context.Context, albumName, fileName string, body io.Reader) (*album.UploadResult, error) {
	return f(ctx, albumName, fileName, body)
}

func drained(albumName, fileName string, body io.Reader) (*album.UploadResult, error) {
	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return nil, err
	}
	return &album.UploadResult{
		Status:     album.StatusDone,
		CommitInfo: &blob.CommitInfo{Container: albumName, Name: fileName, Size: n, Blocks: 1},
	}, nil
}

// ===================================================================================================

func TestUploadOne(t *testing.T) {
	backend, svc := setupAlbum(t)
	pipeline := NewPipeline(svc)
	data := photo(1000, 7)

	reader := multipartForm(t,
		textField("caption", "sunset at the beach"),
		filePart(FieldFile, "beach.jpg", data),
		filePart(FieldFile, "ignored.jpg", photo(10, 1)),
	)

	report, err := pipeline.UploadOne(context.Background(), "Goa", reader)
	require.NoError(t, err)

	parts := report.Parts()
	require.Len(t, parts, 1)
	assert.Equal(t, "beach.jpg", parts[0].FileName)
	assert.Equal(t, StateCommitted, parts[0].State)
	assert.Equal(t, int64(len(data)), parts[0].Bytes)
	assert.NotEmpty(t, parts[0].Version)

	got, err := backend.ReadBlob("Goa", "beach.jpg")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	exists, err := backend.BlobExists(context.Background(), "Goa", "ignored.jpg")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUploadOne_NoFilePart(t *testing.T) {
	_, svc := setupAlbum(t)
	pipeline := NewPipeline(svc)

	tests := []struct {
		name  string
		parts []formPart
	}{
		{name: "empty form"},
		{name: "text only", parts: []formPart{textField(FieldFile, "not a file")}},
		{name: "wrong field", parts: []formPart{filePart(FieldFiles, "beach.jpg", photo(10, 1))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := pipeline.UploadOne(context.Background(), "Goa", multipartForm(t, tt.parts...))
			assert.ErrorIs(t, err, ErrNoFilePart)
			assert.Zero(t, report.Len())
		})
	}
}

func TestUploadOne_Malformed(t *testing.T) {
	_, svc := setupAlbum(t)
	pipeline := NewPipeline(svc)

	reader := NewForm(bytes.NewBufferString("this is not a multipart body"), "boundary")
	_, err := pipeline.UploadOne(context.Background(), "Goa", reader)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestUploadOne_MissingAlbum(t *testing.T) {
	_, svc := setupAlbum(t)
	pipeline := NewPipeline(svc)

	reader := multipartForm(t, filePart(FieldFile, "beach.jpg", photo(10, 1)))
	report, err := pipeline.UploadOne(context.Background(), "Kerala", reader)
	require.ErrorIs(t, err, blob.ErrContainerNotFound)

	parts := report.Parts()
	require.Len(t, parts, 1)
	assert.Equal(t, StateFailed, parts[0].State)
	assert.ErrorIs(t, parts[0].Err, blob.ErrContainerNotFound)
}

func TestUploadMany(t *testing.T) {
	backend, svc := setupAlbum(t)
	pipeline := NewPipeline(svc)

	files := map[string][]byte{
		"a.jpg": photo(0, 1),
		"b.jpg": photo(63, 2),
		"c.jpg": photo(64, 3),
		"d.png": photo(1000, 4),
	}

	reader := multipartForm(t,
		filePart(FieldFiles, "a.jpg", files["a.jpg"]),
		textField("note", "skip me"),
		filePart(FieldFiles, "b.jpg", files["b.jpg"]),
		filePart(FieldFile, "other-field.jpg", photo(5, 9)),
		filePart(FieldFiles, "c.jpg", files["c.jpg"]),
		filePart(FieldFiles, "d.png", files["d.png"]),
	)

	report, err := pipeline.UploadMany(context.Background(), "Goa", reader)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Len())
	assert.Equal(t, 4, report.Count(StateCommitted))

	for name, data := range files {
		got, err := backend.ReadBlob("Goa", name)
		require.NoError(t, err, name)
		assert.Equal(t, data, got, name)
	}

	// arrival order is kept
	parts := report.Parts()
	assert.Equal(t, "a.jpg", parts[0].FileName)
	assert.Equal(t, "d.png", parts[3].FileName)
}

func TestUploadMany_NoFilePart(t *testing.T) {
	_, svc := setupAlbum(t)
	pipeline := NewPipeline(svc)

	_, err := pipeline.UploadMany(context.Background(), "Goa", multipartForm(t, textField("note", "hi")))
	assert.ErrorIs(t, err, ErrNoFilePart)

	_, err = pipeline.UploadMany(context.Background(), "Goa", multipartForm(t))
	assert.ErrorIs(t, err, ErrNoFilePart)
}

func TestUploadMany_DuplicateNamesLastWins(t *testing.T) {
	backend, svc := setupAlbum(t)
	pipeline := NewPipeline(svc, WithMaxFilesInFlight(1))

	reader := multipartForm(t,
		filePart(FieldFiles, "taj.jpg", []byte("first")),
		filePart(FieldFiles, "taj.jpg", []byte("second")),
	)

	report, err := pipeline.UploadMany(context.Background(), "Goa", reader)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(StateCommitted))

	got, err := backend.ReadBlob("Goa", "taj.jpg")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestUploadMany_FirstErrorCancelsRest(t *testing.T) {
	injected := errors.New("store unavailable")
	slowStarted := make(chan struct{})

	uploader := uploaderFunc(func(ctx context.Context, albumName, fileName string, body io.Reader) (*album.UploadResult, error) {
		switch fileName {
		case "slow.jpg":
			if _, err := io.Copy(io.Discard, body); err != nil {
				return nil, err
			}
			close(slowStarted)
			// a commit that only ends when cancelled
			<-ctx.Done()
			return nil, ctx.Err()
		case "bad.jpg":
			<-slowStarted
			_, _ = io.CopyN(io.Discard, body, 10)
			return nil, injected
		default:
			return drained(albumName, fileName, body)
		}
	})
	pipeline := NewPipeline(uploader)

	reader := multipartForm(t,
		filePart(FieldFiles, "ok.jpg", photo(100, 1)),
		filePart(FieldFiles, "slow.jpg", photo(100, 2)),
		filePart(FieldFiles, "bad.jpg", photo(100, 3)),
		filePart(FieldFiles, "never.jpg", photo(100, 4)),
	)

	report, err := pipeline.UploadMany(context.Background(), "Goa", reader)
	require.ErrorIs(t, err, injected)

	states := map[string]PartState{}
	for _, p := range report.Parts() {
		states[p.FileName] = p.State
	}
	assert.Equal(t, StateCommitted, states["ok.jpg"])
	assert.Equal(t, StateCancelled, states["slow.jpg"])
	assert.Equal(t, StateFailed, states["bad.jpg"])
	assert.Equal(t, 1, report.Count(StateFailed))
	// the part after the failure may or may not have been dispatched, but it never fails on its own
	assert.NotEqual(t, StateFailed, states["never.jpg"])
}

func TestUploadMany_CommitOverlapsNextPart(t *testing.T) {
	release := make(chan struct{})
	var started sync.Map

	uploader := uploaderFunc(func(ctx context.Context, albumName, fileName string, body io.Reader) (*album.UploadResult, error) {
		started.Store(fileName, true)
		res, err := drained(albumName, fileName, body)
		if err != nil {
			return nil, err
		}
		if fileName == "first.jpg" {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return res, nil
	})
	pipeline := NewPipeline(uploader)

	reader := multipartForm(t,
		filePart(FieldFiles, "first.jpg", photo(100, 1)),
		filePart(FieldFiles, "second.jpg", photo(100, 2)),
	)

	done := make(chan error, 1)
	go func() {
		_, err := pipeline.UploadMany(context.Background(), "Goa", reader)
		done <- err
	}()

	// the second part starts while the first one still waits for its commit
	assert.Eventually(t, func() bool {
		_, ok := started.Load("second.jpg")
		return ok
	}, 2*time.Second, time.Millisecond)

	close(release)
	require.NoError(t, <-done)
}

func TestUploadMany_MaxFilesInFlight(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64

	uploader := uploaderFunc(func(ctx context.Context, albumName, fileName string, body io.Reader) (*album.UploadResult, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		res, err := drained(albumName, fileName, body)
		time.Sleep(5 * time.Millisecond)
		return res, err
	})
	pipeline := NewPipeline(uploader, WithMaxFilesInFlight(2))

	parts := make([]formPart, 0, 8)
	for i := range 8 {
		parts = append(parts, filePart(FieldFiles, string(rune('a'+i))+".jpg", photo(50, byte(i))))
	}

	report, err := pipeline.UploadMany(context.Background(), "Goa", multipartForm(t, parts...))
	require.NoError(t, err)
	assert.Equal(t, 8, report.Count(StateCommitted))
	assert.LessOrEqual(t, maxInFlight.Load(), int64(2))
}

func TestUploadMany_ClientDisconnect(t *testing.T) {
	backend, svc := setupAlbum(t)
	pipeline := NewPipeline(svc)

	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)
	reader := NewForm(pr, w.Boundary())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		report *Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := pipeline.UploadMany(ctx, "Goa", reader)
		done <- result{report, err}
	}()

	first := photo(500, 1)
	fw, err := w.CreateFormFile(FieldFiles, "first.jpg")
	require.NoError(t, err)
	_, err = fw.Write(first)
	require.NoError(t, err)

	fw, err = w.CreateFormFile(FieldFiles, "second.jpg")
	require.NoError(t, err)
	_, err = fw.Write(photo(300, 2))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		ok, _ := backend.BlobExists(context.Background(), "Goa", "first.jpg")
		return ok
	}, 2*time.Second, time.Millisecond)

	// the connection drops in the middle of the second file
	cancel()
	pw.CloseWithError(errors.New("connection reset by peer"))

	res := <-done
	require.Error(t, res.err)

	parts := res.report.Parts()
	require.Len(t, parts, 2)
	assert.Equal(t, StateCommitted, parts[0].State)
	assert.Equal(t, StateCancelled, parts[1].State)

	exists, err := backend.BlobExists(context.Background(), "Goa", "second.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := backend.ReadBlob("Goa", "first.jpg")
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestUploadMany_TruncatedBody(t *testing.T) {
	backend, svc := setupAlbum(t)
	pipeline := NewPipeline(svc, WithMaxFilesInFlight(1))

	body, boundary := multipartBody(t,
		filePart(FieldFiles, "whole.jpg", photo(200, 1)),
		filePart(FieldFiles, "cut.jpg", photo(400, 2)),
	)
	truncated := body.Bytes()[:body.Len()-300]

	report, err := pipeline.UploadMany(context.Background(), "Goa", NewForm(bytes.NewReader(truncated), boundary))
	require.ErrorIs(t, err, ErrMalformed)

	parts := report.Parts()
	require.Len(t, parts, 2)
	assert.Equal(t, StateCommitted, parts[0].State)
	assert.Equal(t, StateFailed, parts[1].State)

	exists, err := backend.BlobExists(context.Background(), "Goa", "cut.jpg")
	require.NoError(t, err)
	assert.False(t, exists)
}

// delimiterOffsets returns where the second delimiter line starts and where the part after it
// begins its headers and its body
func delimiterOffsets(raw []byte, boundary string) (delim, headers, body int) {
	dashBoundary := []byte("--" + boundary)
	delim = len(dashBoundary) + bytes.Index(raw[len(dashBoundary):], dashBoundary)
	headers = delim + len(dashBoundary) + len("\r\n")
	body = delim + bytes.Index(raw[delim:], []byte("\r\n\r\n")) + len("\r\n\r\n")
	return delim, headers, body
}

func TestUploadMany_CutBetweenParts(t *testing.T) {
	body, boundary := multipartBody(t,
		filePart(FieldFiles, "a.jpg", photo(100, 1)),
		filePart(FieldFiles, "b.jpg", photo(80, 2)),
	)
	raw := body.Bytes()
	delim, headers, partBody := delimiterOffsets(raw, boundary)

	tests := []struct {
		name      string
		cut       int
		wantParts int
		bStored   bool
	}{
		{name: "inside the delimiter", cut: delim + 3, wantParts: 1},
		{name: "after the delimiter line", cut: headers, wantParts: 1},
		{name: "inside the part headers", cut: headers + 10, wantParts: 1},
		{name: "after the part headers", cut: partBody, wantParts: 2},
		{name: "inside the closing delimiter", cut: len(raw) - len("--\r\n"), wantParts: 2, bStored: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, svc := setupAlbum(t)
			pipeline := NewPipeline(svc, WithMaxFilesInFlight(1))

			report, err := pipeline.UploadMany(context.Background(), "Goa", NewForm(bytes.NewReader(raw[:tt.cut]), boundary))
			require.ErrorIs(t, err, ErrMalformed)
			assert.Equal(t, tt.wantParts, report.Len())

			if !tt.bStored {
				exists, err := backend.BlobExists(context.Background(), "Goa", "b.jpg")
				require.NoError(t, err)
				assert.False(t, exists)
			}
		})
	}
}

func TestUploadOne_CutBeforeFilePart(t *testing.T) {
	_, svc := setupAlbum(t)
	pipeline := NewPipeline(svc)

	body, boundary := multipartBody(t,
		textField("caption", "sunset at the beach"),
		filePart(FieldFile, "beach.jpg", photo(50, 1)),
	)
	raw := body.Bytes()
	delim, headers, _ := delimiterOffsets(raw, boundary)

	for name, cut := range map[string]int{
		"inside the delimiter":     delim + 3,
		"after the delimiter line": headers,
		"inside the part headers":  headers + 10,
	} {
		t.Run(name, func(t *testing.T) {
			report, err := pipeline.UploadOne(context.Background(), "Goa", NewForm(bytes.NewReader(raw[:cut]), boundary))
			require.ErrorIs(t, err, ErrMalformed)
			assert.NotErrorIs(t, err, ErrNoFilePart)
			assert.Zero(t, report.Len())
		})
	}
}

func TestUploadMany_EveryTruncationFails(t *testing.T) {
	_, svc := setupAlbum(t)
	pipeline := NewPipeline(svc)

	body, boundary := multipartBody(t,
		filePart(FieldFiles, "a.jpg", photo(30, 1)),
		filePart(FieldFiles, "b.jpg", photo(20, 2)),
	)
	raw := body.Bytes()
	closing := []byte("--" + boundary + "--")
	complete := bytes.LastIndex(raw, closing) + len(closing)

	for cut := 0; cut <= len(raw); cut++ {
		_, err := pipeline.UploadMany(context.Background(), "Goa", NewForm(bytes.NewReader(raw[:cut]), boundary))
		if cut == complete || cut == len(raw) {
			assert.NoError(t, err, "cut=%d/%d", cut, len(raw))
			continue
		}
		assert.ErrorIs(t, err, ErrMalformed, "cut=%d/%d tail=%q", cut, len(raw), raw[max(0, cut-12):cut])
	}
}

func TestUploadOne_KeepsClientFileName(t *testing.T) {
	backend, svc := setupAlbum(t)
	pipeline := NewPipeline(svc)
	data := photo(90, 3)

	report, err := pipeline.UploadOne(context.Background(), "Goa", multipartForm(t, filePart(FieldFile, "trip/taj.jpg", data)))
	require.NoError(t, err)
	assert.Equal(t, "trip/taj.jpg", report.Parts()[0].FileName)

	got, err := backend.ReadBlob("Goa", "trip/taj.jpg")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	exists, err := backend.BlobExists(context.Background(), "Goa", "taj.jpg")
	require.NoError(t, err)
	assert.False(t, exists)
}
