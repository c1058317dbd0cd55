package api

import (
	"errors"
	"fmt"
	"net/http"

	"cove/internal/server/auth"
	"cove/internal/server/service"
	"cove/internal/server/share"
	"cove/internal/server/transfer"
	"cove/internal/server/vault"

	"github.com/labstack/echo/v4"
)

// Handler contains the HTTP handlers for the Cove API.
type Handler struct {
	drive     *service.DriveService
	shares    *share.Registry
	transfers *transfer.Store
	auth      *auth.Authenticator
	owner     string
}

// NewHandler creates a new handler with its service dependencies. owner
// labels the shares created through this handler.
func NewHandler(drive *service.DriveService, shares *share.Registry, transfers *transfer.Store, authn *auth.Authenticator, owner string) *Handler {
	return &Handler{
		drive:     drive,
		shares:    shares,
		transfers: transfers,
		auth:      authn,
		owner:     owner,
	}
}

// HandleLogin handles POST /api/login.
func (h *Handler) HandleLogin(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	token, err := h.auth.Login(c.RealIP(), req.Username, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"token":   token,
		"message": "login successful",
	})
}

// HandleLogout handles POST /api/logout.
func (h *Handler) HandleLogout(c echo.Context) error {
	h.auth.Logout(sessionToken(c))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// HandleList handles GET /api/files?path=.
func (h *Handler) HandleList(c echo.Context) error {
	rel := c.QueryParam("path")

	entries, err := h.drive.List(rel)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"path":  rel,
		"files": entries,
	})
}

// HandleUpload handles POST /api/upload.
// Accepts a multipart form: repeated "files" parts, a parallel "paths" list
// carrying client-side relative folder paths, and a "path" target field.
func (h *Handler) HandleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "multipart form with a 'files' field is required",
		})
	}

	fileHeaders := form.File["files"]
	relPaths := form.Value["paths"]
	rel := c.FormValue("path")

	items := make([]vault.UploadItem, 0, len(fileHeaders))
	for i, fh := range fileHeaders {
		src, err := fh.Open()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"error": "failed to read uploaded file",
			})
		}
		defer src.Close()

		item := vault.UploadItem{
			Name: fh.Filename,
			Size: fh.Size,
			Data: src,
		}
		if i < len(relPaths) {
			item.RelPath = relPaths[i]
		}
		items = append(items, item)
	}

	result, err := h.drive.Upload(rel, items)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("uploaded %d file(s)", len(result.Saved)),
		"saved":   result.Saved,
		"skipped": result.Skipped,
	})
}

// HandleDownload handles GET /api/download?path=&name=.
// Files stream directly; directories are packaged as a zip archive whose
// temporary file is removed once the response is written.
func (h *Handler) HandleDownload(c echo.Context) error {
	rel := c.QueryParam("path")
	name := c.QueryParam("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	dl, err := h.drive.PrepareDownload(rel, name)
	if err != nil {
		return mapServiceError(c, err)
	}
	defer dl.Cleanup()

	return c.Attachment(dl.Path, dl.Filename)
}

// HandleDelete handles POST /api/delete.
func (h *Handler) HandleDelete(c echo.Context) error {
	var req struct {
		Path string `json:"path"`
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	if err := h.drive.Delete(req.Path, req.Name); err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "deleted successfully"})
}

// HandleRename handles POST /api/rename.
func (h *Handler) HandleRename(c echo.Context) error {
	var req struct {
		Path    string `json:"path"`
		OldName string `json:"old_name"`
		NewName string `json:"new_name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.OldName == "" || req.NewName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "old_name and new_name are required"})
	}

	if err := h.drive.Rename(req.Path, req.OldName, req.NewName); err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "renamed successfully"})
}

// HandleStorageInfo handles GET /api/storage.
func (h *Handler) HandleStorageInfo(c echo.Context) error {
	info := h.drive.Info()
	return c.JSON(http.StatusOK, echo.Map{
		"used_bytes":      info.UsedBytes,
		"total_bytes":     info.TotalBytes,
		"available_bytes": info.AvailableBytes,
		"used_human":      humanizeBytes(info.UsedBytes),
		"total_human":     humanizeBytes(info.TotalBytes),
		"recent":          info.Recent,
	})
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "healthy"})
}

// mapServiceError translates core errors into appropriate HTTP responses.
// Raw internal error values never reach the client.
func mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, vault.ErrPathViolation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid path"})
	case errors.Is(err, vault.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, vault.ErrNameConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "an entry with that name already exists"})
	case errors.Is(err, vault.ErrQuotaExceeded):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "storage quota exceeded"})
	case errors.Is(err, vault.ErrNoFiles):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no files provided"})
	case errors.Is(err, vault.ErrInvalidName):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid file name"})
	case errors.Is(err, share.ErrShareNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "share not found"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid username or password"})
	case errors.Is(err, auth.ErrTooManyAttempts):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many failed login attempts"})
	case errors.Is(err, auth.ErrInvalidSession):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
