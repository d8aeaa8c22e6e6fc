package album

import (
	"errors"
	"strconv"
	"time"

	"github.com/openmined/photobox/internal/server/blob"
)

const (
	StatusSuccess = "SUCCESS"
	StatusDone    = "DONE"

	dateLayout = "2006-01-02"
)

var (
	ErrEmptyName      = errors.New("album name is empty")
	ErrInvalidPattern = errors.New("invalid photo pattern")
)

// Album is a container as presented to clients
type Album struct {
	Name         string `json:"name"`
	LastModified string `json:"lastModified"`
}

// AlbumContent is a photo as presented to clients. Size is a decimal string.
type AlbumContent struct {
	Name         string `json:"name"`
	LastModified string `json:"lastModified"`
	Size         string `json:"size"`
}

type CreateResult struct {
	Status string
	Name   string
}

type UploadResult struct {
	Status string
	*blob.CommitInfo
}

func newAlbum(item *blob.ContainerItem, loc *time.Location) *Album {
	return &Album{
		Name:         item.Name,
		LastModified: item.Properties.LastModified.In(loc).Format(dateLayout),
	}
}

func newAlbumContent(item *blob.BlobItem, loc *time.Location) *AlbumContent {
	return &AlbumContent{
		Name:         item.Name,
		LastModified: item.LastModified.In(loc).Format(dateLayout),
		Size:         strconv.FormatInt(item.ContentLength, 10),
	}
}
