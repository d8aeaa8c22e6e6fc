package album

const (
	defaultAlbumName    = "default"
	defaultHistoryLimit = 100

	replyUploaded = "Uploaded"
	replySuccess  = "SUCCESS"
)

type AlbumURI struct {
	Name string `uri:"name" binding:"required"`
}

type PhotosRequest struct {
	Pattern string `form:"pattern"`
}

type UploadHistoryRequest struct {
	Limit int `form:"limit" binding:"min=1,max=1000"`
}
