package handler

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/xenking/furniture-store/internal/domain/asset"
)

func (h *Handler) assetsAvailable(c *gin.Context) bool {
	if h.Assets == nil {
		fail(c, http.StatusServiceUnavailable, "Image storage is not configured")
		return false
	}
	return true
}

// Upload stores the images sent in the multipart "files" field and returns
// their public URLs in order.
func (h *Handler) Upload(c *gin.Context) {
	if !h.assetsAvailable(c) {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		fail(c, http.StatusBadRequest, "No files provided.")
		return
	}

	headers := form.File["files"]
	files := make([]asset.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respondError(c, errors.Wrapf(err, "open %s", fh.Filename), "Upload failed")
			return
		}
		defer func(f multipart.File) { _ = f.Close() }(f)
		files = append(files, asset.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	urls, err := h.Assets.Upload(c, files)
	if err != nil {
		respondError(c, err, "Upload failed")
		return
	}
	respond(c, http.StatusOK, gin.H{"urls": urls})
}

type deleteUploadsRequest struct {
	URL  string   `json:"url"`
	URLs []string `json:"urls"`
}

type deleteResultJSON struct {
	URL     string `json:"url"`
	Key     string `json:"key,omitempty"`
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// DeleteUploads removes one "url" or a list of "urls" and reports the
// outcome per URL. Partial failure is still a 200.
func (h *Handler) DeleteUploads(c *gin.Context) {
	if !h.assetsAvailable(c) {
		return
	}
	var req deleteUploadsRequest
	if !bindJSON(c, &req) {
		return
	}
	urls := req.URLs
	if len(urls) == 0 && req.URL != "" {
		urls = []string{req.URL}
	}
	if len(urls) == 0 {
		fail(c, http.StatusBadRequest, "No URL(s) provided.")
		return
	}

	results := h.Assets.DeleteAll(c, urls)
	message := "Some images may not have been deleted"
	if asset.AllDeleted(results) {
		message = "All images deleted"
	}
	respond(c, http.StatusOK, gin.H{
		"message": message,
		"results": mapSlice(results, func(r *asset.DeleteResult) deleteResultJSON { return deleteResultJSON(*r) }),
	})
}
