package photosdk

import (
	"context"

	"github.com/imroc/req/v3"
	"github.com/openmined/photobox/internal/server/album"
)

const (
	pathAlbum   = "/album"
	pathAlbumV2 = "/album/v2"
)

type AlbumAPI struct {
	client *req.Client
}

func newAlbumAPI(client *req.Client) *AlbumAPI {
	return &AlbumAPI{
		client: client,
	}
}

// Create creates an album. The server replaces every character outside [A-Za-z0-9] with `-`.
func (a *AlbumAPI) Create(ctx context.Context, name string) (*CreateAlbumResponse, error) {
	if name == "" {
		return nil, ErrNoAlbum
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("name", name).
		Post(pathAlbum)

	if err := handleAPIError(resp, err, "album create"); err != nil {
		return nil, err
	}

	return &CreateAlbumResponse{
		Status: resp.String(),
		Album:  album.Sanitize(name),
	}, nil
}

func (a *AlbumAPI) List(ctx context.Context) (albums []*Album, err error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetSuccessResult(&albums).
		Get(pathAlbum)

	if err := handleAPIError(resp, err, "album list"); err != nil {
		return nil, err
	}

	return albums, nil
}

// ListV2 lists the raw container entries
func (a *AlbumAPI) ListV2(ctx context.Context) (items []*ContainerItem, err error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetSuccessResult(&items).
		Get(pathAlbumV2)

	if err := handleAPIError(resp, err, "album list v2"); err != nil {
		return nil, err
	}

	return items, nil
}
