package photosdk

import "time"

const (
	HeaderUserAgent       = "User-Agent"
	HeaderPhotoBoxVersion = "X-PhotoBox-Version"
)

// Album is an entry of GET /album
type Album struct {
	Name         string `json:"name"`
	LastModified string `json:"lastModified"`
}

// ContainerItem is an entry of GET /album/v2
type ContainerItem struct {
	Name       string `json:"name"`
	Properties struct {
		LastModified time.Time `json:"lastModified"`
	} `json:"properties"`
}

// Photo is an entry of GET /album/:name/photo. Size is a decimal string.
type Photo struct {
	Name         string `json:"name"`
	LastModified string `json:"lastModified"`
	Size         string `json:"size"`
}

type CreateAlbumResponse struct {
	Status string
	// Album is the name the server stores the album under
	Album string
}

type ProgressCallback func(fileName string, uploaded int64, total int64)

type UploadParams struct {
	Album    string
	FilePath string
	// FileName overrides the base name of FilePath
	FileName string
	Callback ProgressCallback
}

type UploadManyParams struct {
	Album     string
	FilePaths []string
	Callback  ProgressCallback
}

type UploadResponse struct {
	Status string
	Files  int
	Bytes  int64
}
