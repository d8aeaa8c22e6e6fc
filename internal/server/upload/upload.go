package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// Pipeline streams the file parts of a multipart request into an album.
//
// Parts share one connection, so a part must be read to its end before the next one
// becomes available. Each part is handed to its own task as soon as it arrives; the
// dispatcher moves on once the task has drained the part body, leaving the remaining
// block transfers and the commit to run alongside the next part.
type Pipeline struct {
	uploader         Uploader
	maxFilesInFlight int
}

type Option func(*Pipeline)

// WithMaxFilesInFlight bounds the number of parts uploading at once. Zero means unbounded.
func WithMaxFilesInFlight(n int) Option {
	return func(p *Pipeline) {
		p.maxFilesInFlight = n
	}
}

func NewPipeline(uploader Uploader, opts ...Option) *Pipeline {
	p := &Pipeline{uploader: uploader}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// UploadOne uploads the first file part under the `file` field
func (p *Pipeline) UploadOne(ctx context.Context, albumName string, form *Form) (*Report, error) {
	report := newReport(albumName)

	part, fileName, err := nextFilePart(ctx, form, FieldFile)
	if err == io.EOF {
		return report, ErrNoFilePart
	} else if err != nil {
		return report, err
	}
	defer part.Close()

	idx := report.add(fileName)
	body := newPartReader(part, func() {
		report.transition(idx, StateStreaming, nil)
	})

	return report, p.uploadPart(ctx, report, idx, fileName, body)
}

// UploadMany uploads every file part under the `files` field.
// The first failure cancels all uploads still in flight and is returned.
func (p *Pipeline) UploadMany(ctx context.Context, albumName string, form *Form) (*Report, error) {
	report := newReport(albumName)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if p.maxFilesInFlight > 0 {
		g.SetLimit(p.maxFilesInFlight)
	}

	seen := mapset.NewThreadUnsafeSet[string]()

	dispatchErr := func() error {
		for {
			part, fileName, err := nextFilePart(gctx, form, FieldFiles)
			if err == io.EOF {
				return nil
			} else if err != nil {
				return err
			}

			if !seen.Add(fileName) {
				slog.Warn("duplicate file in upload, last commit wins", "album", albumName, "file", fileName)
			}

			idx := report.add(fileName)
			body := newPartReader(part, func() {
				report.transition(idx, StateStreaming, nil)
			})

			g.Go(func() error {
				return p.uploadPart(gctx, report, idx, fileName, body)
			})

			select {
			case <-body.Done():
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	}()

	if dispatchErr != nil {
		cancel()
	}

	// a failed part cancels gctx, which surfaces in the dispatcher as a context error
	waitErr := g.Wait()
	err := dispatchErr
	if err == nil || (waitErr != nil && errors.Is(err, context.Canceled)) {
		err = waitErr
	}
	if err != nil {
		return report, err
	}

	if report.Len() == 0 {
		return report, ErrNoFilePart
	}
	return report, nil
}

func (p *Pipeline) uploadPart(ctx context.Context, report *Report, idx int, fileName string, body *partReader) error {
	defer body.finish()

	res, err := p.uploader.Upload(ctx, report.Album, fileName, body)
	if err != nil {
		state := StateFailed
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			state = StateCancelled
		}
		report.transition(idx, state, func(r *PartResult) {
			r.Bytes = body.BytesRead()
			r.Err = err
		})
		if state == StateFailed {
			slog.Error("photo upload failed", "album", report.Album, "file", fileName, "error", err)
		} else {
			slog.Warn("photo upload cancelled", "album", report.Album, "file", fileName)
		}
		return err
	}

	report.transition(idx, StateCommitted, func(r *PartResult) {
		r.Bytes = res.Size
		r.Version = res.Version
	})
	slog.Info("photo uploaded",
		"album", report.Album,
		"file", fileName,
		"size", humanize.Bytes(uint64(res.Size)),
		"blocks", res.Blocks,
	)
	return nil
}

// nextFilePart returns the next part under field that carries a file name, along with that name.
// Other parts are drained and skipped. A bare io.EOF marks the closing delimiter; the
// read errors are formatted with %v so a cut-off body never compares equal to it.
func nextFilePart(ctx context.Context, form *Form, field string) (*multipart.Part, string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		part, err := form.nextPart()
		if err == io.EOF {
			return nil, "", io.EOF
		} else if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, "", ctxErr
			}
			return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		if fileName := partFileName(part); part.FormName() == field && fileName != "" {
			return part, fileName, nil
		}

		_, err = io.Copy(io.Discard, part)
		part.Close()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, "", ctxErr
			}
			return nil, "", fmt.Errorf("%w: skip part %q: %v", ErrMalformed, part.FormName(), err)
		}
	}
}
