package api

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// HandleTransferUpload handles POST /api/transfer.
// Quick-transfer drops are anonymous: no session required, only an optional
// uploader label. A parallel "paths" list carries client-side relative paths
// so folder drops keep their structure. Re-uploading a name replaces the
// previous drop. Drops count against the shared storage quota, so an
// oversized batch is rejected wholesale.
func (h *Handler) HandleTransferUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "multipart form with a 'files' field is required",
		})
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no files provided"})
	}
	relPaths := form.Value["paths"]
	uploader := c.FormValue("uploader")

	var saved, skipped []string
	var lastErr error
	for i, fh := range fileHeaders {
		src, err := fh.Open()
		if err != nil {
			skipped = append(skipped, fh.Filename)
			continue
		}

		item, err := h.transfers.Put(fh.Filename, dropDir(relPaths, i), uploader, fh.Size, src)
		src.Close()
		if err != nil {
			lastErr = err
			skipped = append(skipped, fh.Filename)
			continue
		}
		saved = append(saved, item.Name)
	}

	if len(saved) == 0 {
		if lastErr != nil {
			return mapServiceError(c, lastErr)
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no files could be stored"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("%d file(s) dropped, available for 1 hour", len(saved)),
		"saved":   saved,
		"skipped": skipped,
	})
}

// HandleTransferList handles GET /api/transfer.
func (h *Handler) HandleTransferList(c echo.Context) error {
	items, err := h.transfers.List()
	if err != nil {
		return mapServiceError(c, err)
	}

	type listItem struct {
		Name             string    `json:"name"`
		RelPath          string    `json:"relative_path,omitempty"`
		Size             int64     `json:"size"`
		Uploader         string    `json:"uploader,omitempty"`
		UploadedAt       time.Time `json:"uploaded_at"`
		RemainingSeconds int64     `json:"remaining_seconds"`
	}

	out := make([]listItem, 0, len(items))
	for _, item := range items {
		out = append(out, listItem{
			Name:             item.Name,
			RelPath:          item.RelPath,
			Size:             item.Size,
			Uploader:         item.Uploader,
			UploadedAt:       item.UploadedAt,
			RemainingSeconds: int64(item.RemainingTTL.Seconds()),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// HandleTransferDownload handles GET /api/transfer/:name?path=.
// An expired drop is indistinguishable from one that never existed.
func (h *Handler) HandleTransferDownload(c echo.Context) error {
	f, item, err := h.transfers.Open(c.QueryParam("path"), c.Param("name"))
	if err != nil {
		return mapServiceError(c, err)
	}
	defer f.Close()

	return c.Attachment(f.Name(), item.Name)
}

// dropDir derives the target directory for file i from the parallel "paths"
// form values, which carry full client-side relative paths including the
// file name itself.
func dropDir(relPaths []string, i int) string {
	if i >= len(relPaths) || relPaths[i] == "" {
		return ""
	}
	dir := path.Dir(strings.ReplaceAll(relPaths[i], "\\", "/"))
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}
