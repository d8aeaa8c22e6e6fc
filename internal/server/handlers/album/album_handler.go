package album

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/photobox/internal/server/album"
	"github.com/openmined/photobox/internal/server/blob"
	"github.com/openmined/photobox/internal/server/handlers/api"
	"github.com/openmined/photobox/internal/server/upload"
	"github.com/openmined/photobox/internal/server/uploadlog"
)

type AlbumHandler struct {
	albums   *album.Service
	pipeline *upload.Pipeline
	uploads  *uploadlog.UploadLogger
}

// New creates the album handler. uploads may be nil, which disables the upload history.
func New(albums *album.Service, pipeline *upload.Pipeline, uploads *uploadlog.UploadLogger) *AlbumHandler {
	return &AlbumHandler{
		albums:   albums,
		pipeline: pipeline,
		uploads:  uploads,
	}
}

// Create handles POST /album?name=<raw>. A missing name creates the default album.
func (h *AlbumHandler) Create(ctx *gin.Context) {
	name, ok := ctx.GetQuery("name")
	if !ok {
		name = defaultAlbumName
	}

	res, err := h.albums.Create(ctx.Request.Context(), name)
	if errors.Is(err, album.ErrEmptyName) {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeAlbumCreateFailed, err)
		return
	}

	ctx.String(http.StatusOK, res.Status)
}

// List handles GET /album
func (h *AlbumHandler) List(ctx *gin.Context) {
	albums, err := h.albums.All(ctx.Request.Context())
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeAlbumListFailed, err)
		return
	}

	ctx.PureJSON(http.StatusOK, albums)
}

// ListV2 handles GET /album/v2 and writes container items as they are listed
func (h *AlbumHandler) ListV2(ctx *gin.Context) {
	written := 0
	for item, err := range h.albums.AllV2(ctx.Request.Context()) {
		if err != nil {
			if written == 0 {
				api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeAlbumListFailed, err)
				return
			}
			// the status is out, a truncated array tells the client the listing broke off
			ctx.Error(fmt.Errorf("list albums after %d items: %w", written, err))
			ctx.Abort()
			return
		}

		data, err := jsonMarshal(item)
		if err != nil {
			ctx.Error(fmt.Errorf("encode album %q: %w", item.Name, err))
			ctx.Abort()
			return
		}

		if written == 0 {
			ctx.Header("Content-Type", "application/json; charset=utf-8")
			ctx.Status(http.StatusOK)
			ctx.Writer.WriteString("[")
		} else {
			ctx.Writer.WriteString(",")
		}
		ctx.Writer.Write(data)
		ctx.Writer.Flush()
		written++
	}

	if written == 0 {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", []byte("[]"))
		return
	}
	ctx.Writer.WriteString("]")
}

// Update handles PUT /album. Albums have no mutable state.
func (h *AlbumHandler) Update(ctx *gin.Context) {
	ctx.String(http.StatusOK, "")
}

// Delete handles DELETE /album. Albums are never removed.
func (h *AlbumHandler) Delete(ctx *gin.Context) {
	ctx.String(http.StatusOK, "")
}

// Photos handles GET /album/:name/photo
func (h *AlbumHandler) Photos(ctx *gin.Context) {
	var uri AlbumURI
	if err := ctx.ShouldBindUri(&uri); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	var req PhotosRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	photos, err := h.albums.Content(ctx.Request.Context(), uri.Name, req.Pattern)
	if errors.Is(err, album.ErrInvalidPattern) || errors.Is(err, album.ErrEmptyName) {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeBlobListFailed, err)
		return
	}

	ctx.PureJSON(http.StatusOK, photos)
}

// UploadOne handles POST /album/:name/photo/upload with a single `file` part
func (h *AlbumHandler) UploadOne(ctx *gin.Context) {
	h.upload(ctx, h.pipeline.UploadOne, replyUploaded)
}

// UploadMany handles POST /album/:name/photo/upload-many with repeated `files` parts
func (h *AlbumHandler) UploadMany(ctx *gin.Context) {
	h.upload(ctx, h.pipeline.UploadMany, replySuccess)
}

// UploadHistory handles GET /album/:name/uploads and returns the most recent part outcomes
func (h *AlbumHandler) UploadHistory(ctx *gin.Context) {
	if h.uploads == nil {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeUploadLogDisabled, errors.New("upload log is disabled"))
		return
	}

	var uri AlbumURI
	if err := ctx.ShouldBindUri(&uri); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	req := UploadHistoryRequest{Limit: defaultHistoryLimit}
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	entries, err := h.uploads.Entries(uri.Name, req.Limit)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, entries)
}

type uploadFunc func(ctx context.Context, albumName string, form *upload.Form) (*upload.Report, error)

func (h *AlbumHandler) upload(ctx *gin.Context, run uploadFunc, reply string) {
	var uri AlbumURI
	if err := ctx.ShouldBindUri(&uri); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	// never ctx.FormFile, parts are streamed straight off the connection
	form, err := upload.FormFromRequest(ctx.Request)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeNotMultipart, err)
		return
	}

	report, err := run(ctx.Request.Context(), uri.Name, form)
	if h.uploads != nil {
		h.uploads.Record(ctx, report)
	}
	if err != nil {
		status, code := uploadErrorStatus(err)
		slog.Debug("upload rejected",
			"album", uri.Name,
			"parts", report.Len(),
			"committed", report.Count(upload.StateCommitted),
			"error", err,
		)
		if status == http.StatusInternalServerError && ctx.Request.Context().Err() != nil {
			// client is gone, nobody reads the reply
			ctx.Error(err)
			ctx.Abort()
			return
		}
		api.AbortWithError(ctx, status, code, err)
		return
	}

	ctx.String(http.StatusOK, reply)
}

func uploadErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, upload.ErrNoFilePart):
		return http.StatusBadRequest, api.CodeNoFilePart
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, upload.ErrMalformed):
		return http.StatusBadRequest, api.CodeInvalidRequest
	case errors.Is(err, album.ErrEmptyName):
		return http.StatusBadRequest, api.CodeInvalidRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusInternalServerError, api.CodeUploadCancelled
	case errors.Is(err, blob.ErrContainerNotFound):
		return http.StatusInternalServerError, api.CodeAlbumNotFound
	default:
		return http.StatusInternalServerError, api.CodeBlobPutFailed
	}
}
