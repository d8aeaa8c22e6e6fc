package blob

import (
	"context"
	"iter"
)

// Backend defines the storage operations a blob store provides.
// Listing and container management map directly onto ObjectStore, while uploads
// are expressed as a block protocol that the block uploader drives:
// a blob is either written with a single PutBlob or staged block by block
// through a BlockSession and committed atomically.
type Backend interface {
	// Check verifies the backend is reachable and usable
	Check(ctx context.Context) error

	// CreateContainer creates a container, succeeding if it already exists
	CreateContainer(ctx context.Context, name string) error

	// ContainerExists reports whether the container exists
	ContainerExists(ctx context.Context, name string) (bool, error)

	// ListContainers lazily lists all containers
	ListContainers(ctx context.Context) iter.Seq2[*ContainerItem, error]

	// ListBlobs lazily lists the blobs of a container
	ListBlobs(ctx context.Context, container string) iter.Seq2[*BlobItem, error]

	// BlobExists reports whether a blob exists
	BlobExists(ctx context.Context, container, name string) (bool, error)

	// PutBlob writes a small blob in one request
	PutBlob(ctx context.Context, params *PutBlobParams) (*CommitInfo, error)

	// BeginBlocks starts a block upload for a blob
	BeginBlocks(ctx context.Context, container, name string) (BlockSession, error)

	// MinBlockSize is the smallest size accepted for a non-final block
	MinBlockSize() int64

	// Delegate returns the underlying client
	Delegate() any
}

// BlockSession is a pending block upload for a single blob.
// StageBlock may be called concurrently. Data passed to StageBlock must not be
// retained after it returns.
type BlockSession interface {
	// StageBlock uploads one block. Index is the zero based position of the block in the blob.
	StageBlock(ctx context.Context, index int, data []byte) (*StagedBlock, error)

	// Commit makes the blob visible, blocks must be in byte order
	Commit(ctx context.Context, blocks []*StagedBlock) (*CommitInfo, error)

	// Abort discards all staged blocks
	Abort(ctx context.Context) error
}

// ===================================================================================================

type PutBlobParams struct {
	Container string
	Name      string
	Data      []byte
}

type StagedBlock struct {
	Index int
	ID    string
	Size  int64
}
