package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HandleCreateShare handles POST /api/shares.
// Shares a fixed set of entry names under a single path.
func (h *Handler) HandleCreateShare(c echo.Context) error {
	var req struct {
		Path  string   `json:"path"`
		Names []string `json:"names"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(req.Names) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no files selected to share"})
	}

	// The shared path must already exist inside the sandbox; creating a
	// share must not create directories as a side effect.
	if err := h.drive.DirExists(req.Path); err != nil {
		return mapServiceError(c, err)
	}

	rec, err := h.shares.Create(h.owner, req.Path, req.Names)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to create share"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"share_id": rec.ID,
		"url":      "/s/" + rec.ID,
		"message":  "share created",
	})
}

// HandleListShares handles GET /api/shares.
func (h *Handler) HandleListShares(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"shares": h.shares.ListAll()})
}

// HandleRevokeShare handles DELETE /api/shares/:id.
func (h *Handler) HandleRevokeShare(c echo.Context) error {
	if err := h.shares.Revoke(c.Param("id")); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "share revoked"})
}

// HandleResolveShare handles GET /s/:id.
// Returns the share record so a recipient can see what is available.
func (h *Handler) HandleResolveShare(c echo.Context) error {
	rec, err := h.shares.Resolve(c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"share_id":   rec.ID,
		"names":      rec.Names,
		"owner":      rec.Owner,
		"created_at": rec.CreatedAt,
	})
}

// HandleShareDownload handles GET /s/:id/:name.
// Only names inside the share's explicit set may be fetched, and the backing
// entry must still exist; shares are weak references into the storage tree.
func (h *Handler) HandleShareDownload(c echo.Context) error {
	rec, err := h.shares.Resolve(c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}

	name := c.Param("name")
	if !rec.Contains(name) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "file is not part of this share"})
	}
	if !h.drive.EntryExists(rec.Path, name) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "shared file no longer exists"})
	}

	dl, err := h.drive.PrepareDownload(rec.Path, name)
	if err != nil {
		return mapServiceError(c, err)
	}
	defer dl.Cleanup()

	return c.Attachment(dl.Path, dl.Filename)
}
