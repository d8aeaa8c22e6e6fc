package album

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/photobox/internal/server/blob"
)

// Service exposes albums and photos on top of an object store.
// An album is a container, a photo is a blob within it.
type Service struct {
	store    blob.ObjectStore
	opts     blob.UploadOptions
	location *time.Location
}

type Option func(*Service)

// WithUploadOptions overrides the block size, concurrency and overwrite behaviour of uploads
func WithUploadOptions(opts blob.UploadOptions) Option {
	return func(s *Service) {
		s.opts = opts
	}
}

// WithLocation sets the time zone used to render dates
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		s.location = loc
	}
}

func NewService(store blob.ObjectStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		opts:     blob.DefaultUploadOptions(),
		location: time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create sanitizes rawName and creates the album if it does not exist
func (s *Service) Create(ctx context.Context, rawName string) (*CreateResult, error) {
	if rawName == "" {
		return nil, ErrEmptyName
	}

	name := Sanitize(rawName)
	if err := s.store.CreateContainer(ctx, name); err != nil {
		return nil, fmt.Errorf("create album %q: %w", name, err)
	}

	slog.Info("album created", "album", name, "requested", rawName)
	return &CreateResult{Status: StatusSuccess, Name: name}, nil
}

// All lists every album
func (s *Service) All(ctx context.Context) ([]*Album, error) {
	albums := make([]*Album, 0)
	for item, err := range s.store.ListContainers(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list albums: %w", err)
		}
		albums = append(albums, newAlbum(item, s.location))
	}
	return albums, nil
}

// AllV2 returns the raw container listing without collecting it
func (s *Service) AllV2(ctx context.Context) iter.Seq2[*blob.ContainerItem, error] {
	return s.store.ListContainers(ctx)
}

// Content lists the photos of an album. A non-empty pattern keeps only names matching the glob.
func (s *Service) Content(ctx context.Context, albumName, pattern string) ([]*AlbumContent, error) {
	if albumName == "" {
		return nil, ErrEmptyName
	}
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}

	photos := make([]*AlbumContent, 0)
	for item, err := range s.store.ListBlobs(ctx, albumName) {
		if err != nil {
			return nil, fmt.Errorf("list photos of %q: %w", albumName, err)
		}
		if pattern != "" {
			if ok, _ := doublestar.Match(pattern, item.Name); !ok {
				continue
			}
		}
		photos = append(photos, newAlbumContent(item, s.location))
	}
	return photos, nil
}

// Upload streams body into the photo fileName of albumName.
// Names are used as given, the album must already exist.
func (s *Service) Upload(ctx context.Context, albumName, fileName string, body io.Reader) (*UploadResult, error) {
	if albumName == "" {
		return nil, ErrEmptyName
	}

	info, err := s.store.UploadBlob(ctx, &blob.UploadBlobParams{
		Container: albumName,
		Name:      fileName,
		Body:      body,
		Options:   s.opts,
	})
	if err != nil {
		return nil, fmt.Errorf("upload %q to %q: %w", fileName, albumName, err)
	}

	return &UploadResult{Status: StatusDone, CommitInfo: info}, nil
}
