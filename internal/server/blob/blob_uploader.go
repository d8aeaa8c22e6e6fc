package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const abortTimeout = 30 * time.Second

// blockUploader turns a byte stream into the backend's block protocol.
//
// A block is read from the body only after a concurrency slot is acquired, so at most
// MaxConcurrency blocks are buffered or in flight at any time and a slow backend
// throttles the reader. Block indexes follow byte order, which fixes the commit order
// regardless of the order in which blocks are acknowledged.
type blockUploader struct {
	backend Backend
}

func newBlockUploader(backend Backend) *blockUploader {
	return &blockUploader{backend: backend}
}

func (u *blockUploader) Upload(ctx context.Context, params *UploadBlobParams) (*CommitInfo, error) {
	if params.Body == nil {
		return nil, fmt.Errorf("nil body")
	}
	if !ValidateKey(params.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, params.Name)
	}

	opts := params.Options.withDefaults(u.backend.MinBlockSize())

	ok, err := u.backend.ContainerExists(ctx, params.Container)
	if err != nil {
		return nil, fmt.Errorf("check container: %w", err)
	} else if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, params.Container)
	}

	if !opts.Overwrite {
		exists, err := u.backend.BlobExists(ctx, params.Container, params.Name)
		if err != nil {
			return nil, fmt.Errorf("check blob: %w", err)
		} else if exists {
			return nil, fmt.Errorf("%w: %s/%s", ErrBlobExists, params.Container, params.Name)
		}
	}

	sem := semaphore.NewWeighted(int64(opts.MaxConcurrency))
	bufs := newBlockBuffers(opts.BlockSize, opts.MaxConcurrency)

	// the first block decides between a single put and a staged upload
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	first := bufs.get()
	n, err := readBlock(params.Body, first)
	if err == io.EOF {
		defer sem.Release(1)
		defer bufs.put(first)
		return u.backend.PutBlob(ctx, &PutBlobParams{
			Container: params.Container,
			Name:      params.Name,
			Data:      first[:n],
		})
	} else if err != nil {
		sem.Release(1)
		return nil, fmt.Errorf("read block 0: %w", err)
	}

	return u.uploadBlocks(ctx, params, sem, bufs, first)
}

func (u *blockUploader) uploadBlocks(ctx context.Context, params *UploadBlobParams, sem *semaphore.Weighted, bufs *blockBuffers, first []byte) (*CommitInfo, error) {
	session, err := u.backend.BeginBlocks(ctx, params.Container, params.Name)
	if err != nil {
		sem.Release(1)
		bufs.put(first)
		return nil, fmt.Errorf("begin blocks: %w", err)
	}

	stageCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(stageCtx)

	var (
		mu     sync.Mutex
		staged = make([]*StagedBlock, 0, 8)
	)

	stage := func(index int, buf []byte, n int) {
		g.Go(func() error {
			defer sem.Release(1)
			defer bufs.put(buf)

			block, err := session.StageBlock(gctx, index, buf[:n])
			if err != nil {
				return fmt.Errorf("stage block %d: %w", index, err)
			}

			mu.Lock()
			staged = append(staged, block)
			mu.Unlock()
			return nil
		})
	}

	readErr := func() error {
		stage(0, first, len(first))
		for index := 1; ; index++ {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}

			buf := bufs.get()
			n, err := readBlock(params.Body, buf)
			if n > 0 {
				stage(index, buf, n)
			} else {
				bufs.put(buf)
				sem.Release(1)
			}

			if err == io.EOF {
				return nil
			} else if err != nil {
				return fmt.Errorf("read block %d: %w", index, err)
			}
		}
	}()

	if readErr != nil {
		cancel()
	}

	// a failed block cancels gctx, which surfaces in the read loop as a context error
	waitErr := g.Wait()
	err = readErr
	if err == nil || (waitErr != nil && errors.Is(err, context.Canceled)) {
		err = waitErr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		u.abort(ctx, session, params)
		return nil, err
	}

	sort.Slice(staged, func(i, j int) bool {
		return staged[i].Index < staged[j].Index
	})

	info, err := session.Commit(ctx, staged)
	if err != nil {
		u.abort(ctx, session, params)
		return nil, fmt.Errorf("commit blocks: %w", err)
	}
	return info, nil
}

// abort discards staged blocks even when ctx is already cancelled
func (u *blockUploader) abort(ctx context.Context, session BlockSession, params *UploadBlobParams) {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	if err := session.Abort(abortCtx); err != nil {
		slog.Warn("abort blocks", "container", params.Container, "name", params.Name, "error", err)
	}
}

// readBlock fills buf from r. It returns io.EOF once r is exhausted; io.ErrUnexpectedEOF
// from r is a truncated body and is returned as is.
func readBlock(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ===================================================================================================

// blockBuffers recycles block buffers within one upload.
// The semaphore bounds how many buffers are live, the free list only avoids reallocating them.
type blockBuffers struct {
	size int64
	free chan []byte
}

func newBlockBuffers(size int64, count int) *blockBuffers {
	return &blockBuffers{
		size: size,
		free: make(chan []byte, count),
	}
}

func (b *blockBuffers) get() []byte {
	select {
	case buf := <-b.free:
		return buf[:b.size]
	default:
		return make([]byte, b.size)
	}
}

func (b *blockBuffers) put(buf []byte) {
	select {
	case b.free <- buf[:cap(buf)]:
	default:
	}
}
