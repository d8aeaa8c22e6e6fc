package blob

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memContainer struct {
	lastModified time.Time
	blobs        map[string]*memBlob
}

type memBlob struct {
	data         []byte
	etag         string
	version      string
	lastModified time.Time
}

// MemoryBackend keeps containers and blobs in process memory.
// It is meant for local development and tests.
type MemoryBackend struct {
	mu         sync.RWMutex
	containers map[string]*memContainer
	now        func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		containers: make(map[string]*memContainer),
		now:        time.Now,
	}
}

func (m *MemoryBackend) Check(ctx context.Context) error {
	return nil
}

func (m *MemoryBackend) CreateContainer(ctx context.Context, name string) error {
	if !ValidateContainerName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidContainerName, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.containers[name]; ok {
		return nil
	}
	m.containers[name] = &memContainer{
		lastModified: m.now(),
		blobs:        make(map[string]*memBlob),
	}
	return nil
}

func (m *MemoryBackend) ContainerExists(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.containers[name]
	return ok, nil
}

func (m *MemoryBackend) ListContainers(ctx context.Context) iter.Seq2[*ContainerItem, error] {
	return func(yield func(*ContainerItem, error) bool) {
		m.mu.RLock()
		items := make([]*ContainerItem, 0, len(m.containers))
		for name, c := range m.containers {
			items = append(items, &ContainerItem{
				Name:       name,
				Properties: ContainerProperties{LastModified: c.lastModified},
			})
		}
		m.mu.RUnlock()

		sort.Slice(items, func(i, j int) bool {
			return items[i].Name < items[j].Name
		})

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (m *MemoryBackend) ListBlobs(ctx context.Context, container string) iter.Seq2[*BlobItem, error] {
	return func(yield func(*BlobItem, error) bool) {
		m.mu.RLock()
		c, ok := m.containers[container]
		if !ok {
			m.mu.RUnlock()
			yield(nil, fmt.Errorf("%w: %s", ErrContainerNotFound, container))
			return
		}
		items := make([]*BlobItem, 0, len(c.blobs))
		for name, b := range c.blobs {
			items = append(items, &BlobItem{
				Name:          name,
				ETag:          b.etag,
				ContentLength: int64(len(b.data)),
				LastModified:  b.lastModified,
			})
		}
		m.mu.RUnlock()

		sort.Slice(items, func(i, j int) bool {
			return items[i].Name < items[j].Name
		})

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (m *MemoryBackend) BlobExists(ctx context.Context, container, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.containers[container]
	if !ok {
		return false, nil
	}
	_, ok = c.blobs[name]
	return ok, nil
}

// ReadBlob returns a copy of a committed blob's content
func (m *MemoryBackend) ReadBlob(container, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.containers[container]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, container)
	}
	b, ok := c.blobs[name]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s/%s", container, name)
	}
	return bytes.Clone(b.data), nil
}

func (m *MemoryBackend) PutBlob(ctx context.Context, params *PutBlobParams) (*CommitInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.commit(params.Container, params.Name, bytes.Clone(params.Data), 1)
}

func (m *MemoryBackend) BeginBlocks(ctx context.Context, container, name string) (BlockSession, error) {
	if !ValidateKey(blobKey(container, name)) {
		return nil, ErrInvalidKey
	}
	return &memBlockSession{
		backend:   m,
		container: container,
		name:      name,
		blocks:    make(map[int][]byte),
	}, nil
}

func (m *MemoryBackend) MinBlockSize() int64 {
	return 1
}

func (m *MemoryBackend) Delegate() any {
	return m
}

func (m *MemoryBackend) commit(container, name string, data []byte, blocks int) (*CommitInfo, error) {
	if !ValidateKey(blobKey(container, name)) {
		return nil, ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.containers[container]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, container)
	}

	sum := md5.Sum(data)
	b := &memBlob{
		data:         data,
		etag:         hex.EncodeToString(sum[:]),
		version:      uuid.NewString(),
		lastModified: m.now(),
	}
	c.blobs[name] = b

	return &CommitInfo{
		Container:    container,
		Name:         name,
		Version:      b.version,
		ETag:         b.etag,
		Size:         int64(len(data)),
		Blocks:       blocks,
		LastModified: b.lastModified,
	}, nil
}

// ===================================================================================================

type memBlockSession struct {
	backend   *MemoryBackend
	container string
	name      string

	mu     sync.Mutex
	blocks map[int][]byte
}

func (s *memBlockSession) StageBlock(ctx context.Context, index int, data []byte) (*StagedBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocks[index] = bytes.Clone(data)
	return &StagedBlock{
		Index: index,
		ID:    fmt.Sprintf("%06d", index),
		Size:  int64(len(data)),
	}, nil
}

func (s *memBlockSession) Commit(ctx context.Context, blocks []*StagedBlock) (*CommitInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	var buf bytes.Buffer
	for _, block := range blocks {
		data, ok := s.blocks[block.Index]
		if !ok {
			s.mu.Unlock()
			return nil, fmt.Errorf("block %d was not staged", block.Index)
		}
		buf.Write(data)
	}
	s.blocks = make(map[int][]byte)
	s.mu.Unlock()

	return s.backend.commit(s.container, s.name, buf.Bytes(), len(blocks))
}

func (s *memBlockSession) Abort(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocks = make(map[int][]byte)
	return nil
}

var _ Backend = (*MemoryBackend)(nil)
