package files

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/reponote/storage/internal/middleware"
	"github.com/reponote/storage/internal/response"
)

// FormField is the multipart field carrying the uploaded file.
const FormField = "file"

var errMissingFile = errors.New("file is required")

// Handler holds HTTP handlers for the upload and download endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new files Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// UploadResponse is returned by a successful upload.
type UploadResponse struct {
	Path string `json:"path" example:"1b4e28ba-2fa1-11d2-883f-0016d3cca427.pdf"`
}

// DownloadResponse is returned by a successful download request.
type DownloadResponse struct {
	URL string `json:"url" example:"http://localhost:9000/reponote-files/1b4e28ba-2fa1-11d2-883f-0016d3cca427.pdf?X-Amz-Signature=..."`
}

// Upload godoc
//
//	@Summary		Upload a file
//	@Description	Streams the multipart "file" field to object storage under a generated key that keeps the original extension.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"File to upload"
//	@Success		200		{object}	UploadResponse
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		422		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	part, err := filePart(r)
	if err != nil {
		response.UnprocessableEntity(w, errMissingFile.Error())
		return
	}
	defer part.Close()

	userID, _ := middleware.UserIDFromContext(r.Context())
	key, err := h.svc.Upload(r.Context(), part.FileName(), part, part.Header.Get("Content-Type"))
	if err != nil {
		zap.S().Errorw("upload failed", "user_id", userID, "filename", part.FileName(), "error", err)
		response.InternalError(w, err.Error())
		return
	}

	zap.S().Infow("file uploaded", "user_id", userID, "key", key)
	response.OK(w, UploadResponse{Path: key})
}

// Download godoc
//
//	@Summary		Get a download URL
//	@Description	Returns a time-limited pre-signed URL for the object. The service never proxies file bytes.
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Param			object_name	path		string	true	"Object key returned by /upload"
//	@Success		200			{object}	DownloadResponse
//	@Failure		401			{object}	response.ErrorBody
//	@Failure		404			{object}	response.ErrorBody
//	@Router			/download/{object_name} [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	key := objectKeyParam(r)

	u, err := h.svc.DownloadURL(r.Context(), key)
	if err != nil {
		userID, _ := middleware.UserIDFromContext(r.Context())
		zap.S().Warnw("download url failed", "user_id", userID, "key", key, "error", err)
		response.NotFound(w, "File not found")
		return
	}

	response.OK(w, DownloadResponse{URL: u})
}

// objectKeyParam returns the decoded object_name segment. chi matches on
// RawPath when the request carried one, so only then is the value still escaped.
func objectKeyParam(r *http.Request) string {
	key := chi.URLParam(r, "object_name")
	if r.URL.RawPath == "" {
		return key
	}
	if unescaped, err := url.PathUnescape(key); err == nil {
		return unescaped
	}
	return key
}

// filePart advances the multipart stream to the file field without buffering
// the body.
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errMissingFile
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == FormField && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}
