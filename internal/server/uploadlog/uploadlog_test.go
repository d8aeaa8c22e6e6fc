package uploadlog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmined/photobox/internal/server/album"
	"github.com/openmined/photobox/internal/server/blob"
	"github.com/openmined/photobox/internal/server/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploaderFunc func(ctx context.Context, albumName, fileName string, body io.Reader) (*album.UploadResult, error)

func (f uploaderFunc) Upload(ctx context.Context, albumName, fileName string, body io.Reader) (*album.UploadResult, error) {
	return f(ctx, albumName, fileName, body)
}

// runUpload pushes files through a pipeline and returns its report. Files named bad* fail.
func runUpload(t *testing.T, albumName string, names ...string) *upload.Report {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		fw, err := mw.CreateFormFile(upload.FieldFiles, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("data-" + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	p := upload.NewPipeline(uploaderFunc(func(ctx context.Context, albumName, fileName string, body io.Reader) (*album.UploadResult, error) {
		n, err := io.Copy(io.Discard, body)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(fileName, "bad") {
			return nil, errors.New("store rejected")
		}
		return &album.UploadResult{
			Status:     album.StatusDone,
			CommitInfo: &blob.CommitInfo{Name: fileName, Size: n, Version: "v-" + fileName},
		}, nil
	}), upload.WithMaxFilesInFlight(1))

	report, _ := p.UploadMany(context.Background(), albumName, upload.NewForm(&buf, mw.Boundary()))
	return report
}

func testContext(t *testing.T) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = httptest.NewRequest(http.MethodPost, "/album/trip/photo/upload-many", nil)
	ctx.Request.Header.Set("User-Agent", "photobox-test")
	return ctx
}

func TestRecordAndEntries(t *testing.T) {
	l, err := New(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	l.Record(testContext(t), runUpload(t, "trip", "a.jpg", "b.jpg"))

	entries, err := l.Entries("trip", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "a.jpg", entries[0].File)
	assert.Equal(t, "committed", entries[0].State)
	assert.Equal(t, int64(len("data-a.jpg")), entries[0].Bytes)
	assert.Equal(t, "v-a.jpg", entries[0].Version)
	assert.Equal(t, "trip", entries[0].Album)
	assert.Equal(t, "/album/trip/photo/upload-many", entries[0].Path)
	assert.Equal(t, "photobox-test", entries[0].UserAgent)
	assert.NotEmpty(t, entries[0].RequestID)
	assert.Equal(t, entries[0].RequestID, entries[1].RequestID)
	assert.WithinDuration(t, time.Now(), entries[0].Timestamp, time.Minute)
}

func TestRecordFailedPart(t *testing.T) {
	l, err := New(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	l.Record(testContext(t), runUpload(t, "trip", "good.jpg", "bad.jpg"))

	entries, err := l.Entries("trip", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byFile := map[string]Entry{}
	for _, e := range entries {
		byFile[e.File] = e
	}
	assert.Equal(t, "committed", byFile["good.jpg"].State)
	assert.Equal(t, "failed", byFile["bad.jpg"].State)
	assert.Contains(t, byFile["bad.jpg"].Error, "store rejected")
}

func TestEntriesLimitAndMissingAlbum(t *testing.T) {
	l, err := New(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	for _, name := range []string{"1.jpg", "2.jpg", "3.jpg"} {
		l.Record(testContext(t), runUpload(t, "trip", name))
	}

	entries, err := l.Entries("trip", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2.jpg", entries[0].File)
	assert.Equal(t, "3.jpg", entries[1].File)

	entries, err = l.Entries("nope", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = l.Entries("trip", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir)
	require.NoError(t, err)
	defer l.Close()

	ctx := testContext(t)
	report := runUpload(t, "trip", "first.jpg")
	l.Record(ctx, report)

	w := l.writers["trip"]
	require.NotNil(t, w)
	w.maxSize = 1

	for range MaxLogFiles + 3 {
		l.Record(ctx, report)
	}

	rotated, err := rotatedLogs(filepath.Join(dir, "trip"))
	require.NoError(t, err)
	assert.Len(t, rotated, MaxLogFiles)

	_, err = os.Stat(filepath.Join(dir, "trip", currentLogName))
	require.NoError(t, err)

	entries, err := l.Entries("trip", 100)
	require.NoError(t, err)
	assert.Len(t, entries, MaxLogFiles+1)
}

func TestAlbumDirIsSanitized(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir)
	require.NoError(t, err)
	defer l.Close()

	l.Record(testContext(t), runUpload(t, "../escape", "a.jpg"))

	_, err = os.Stat(filepath.Join(dir, "---escape", currentLogName))
	require.NoError(t, err)
}

func TestAliasedAlbumsShareWriter(t *testing.T) {
	l, err := New(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	ctx := testContext(t)
	l.Record(ctx, runUpload(t, "a.b", "one.jpg"))
	l.Record(ctx, runUpload(t, "a-b", "two.jpg"))
	require.Len(t, l.writers, 1)

	// every write now rotates the shared file
	l.writers["a-b"].maxSize = 1
	l.Record(ctx, runUpload(t, "a.b", "three.jpg"))
	l.Record(ctx, runUpload(t, "a-b", "four.jpg"))

	entries, err := l.Entries("a.b", 10)
	require.NoError(t, err)
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		files = append(files, e.File)
	}
	assert.Equal(t, []string{"one.jpg", "two.jpg", "three.jpg", "four.jpg"}, files)
}

func TestClosed(t *testing.T) {
	l, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	assert.ErrorIs(t, l.write("trip", []Entry{{File: "a.jpg"}}), ErrClosed)
}

func TestEntryJSON(t *testing.T) {
	ts := time.Date(2026, 10, 19, 8, 30, 15, 123_000_000, time.UTC)
	data, err := Entry{Timestamp: ts, Album: "trip", File: "a.jpg", State: "committed"}.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timestamp":"2026-10-19 08:30:15.123 UTC"`)

	var got Entry
	require.NoError(t, got.UnmarshalJSON(data))
	assert.True(t, ts.Equal(got.Timestamp))
	assert.Equal(t, "a.jpg", got.File)

	require.NoError(t, got.UnmarshalJSON([]byte(`{"timestamp":"2026-10-19T08:30:15Z","file":"b.jpg"}`)))
	assert.Equal(t, "b.jpg", got.File)
}
