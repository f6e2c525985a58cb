package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/substills/internal/database"
)

func (api *API) listCaptures(c *gin.Context) {
	if api.history == nil {
		unavailable(c, "capture history")
		return
	}

	filter := database.CaptureFilter{
		TabID:  c.Query("tab_id"),
		Source: c.Query("source"),
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		filter.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
			return
		}
		filter.Offset = offset
	}

	captures, err := api.history.ListCaptures(c.Request.Context(), filter)
	if err != nil {
		api.logger.WithError(err).Error("Failed to list captures")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list captures"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"captures": captures,
		"count":    len(captures),
	})
}

func (api *API) captureStats(c *gin.Context) {
	if api.history == nil {
		unavailable(c, "capture history")
		return
	}

	stats, err := api.history.Stats(c.Request.Context())
	if err != nil {
		api.logger.WithError(err).Error("Failed to get capture stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get capture stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (api *API) getCapture(c *gin.Context) {
	if api.history == nil {
		unavailable(c, "capture history")
		return
	}

	capture, err := api.history.GetCapture(c.Request.Context(), c.Param("id"))
	if err != nil {
		failure(c, err)
		return
	}
	c.JSON(http.StatusOK, capture)
}

// downloadCapture redirects to a presigned URL for the stored image
func (api *API) downloadCapture(c *gin.Context) {
	if api.history == nil || api.objects == nil {
		unavailable(c, "capture storage")
		return
	}

	capture, err := api.history.GetCapture(c.Request.Context(), c.Param("id"))
	if err != nil {
		failure(c, err)
		return
	}
	if capture.ObjectKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Capture was not saved"})
		return
	}

	url, err := api.objects.DownloadURL(c.Request.Context(), capture.ObjectKey, capture.Filename)
	if err != nil {
		api.logger.WithError(err).Error("Failed to sign download URL")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create download URL"})
		return
	}

	if c.Query("redirect") == "false" {
		c.JSON(http.StatusOK, gin.H{"url": url, "filename": capture.Filename})
		return
	}
	c.Redirect(http.StatusFound, url)
}

// deleteCapture removes the history record and its stored object
func (api *API) deleteCapture(c *gin.Context) {
	if api.history == nil {
		unavailable(c, "capture history")
		return
	}

	ctx := c.Request.Context()
	capture, err := api.history.GetCapture(ctx, c.Param("id"))
	if err != nil {
		failure(c, err)
		return
	}

	if capture.ObjectKey != "" && api.objects != nil {
		if err := api.objects.Delete(ctx, capture.ObjectKey); err != nil {
			api.logger.WithCaptureID(capture.ID).WithError(err).Warn("Failed to delete stored object")
		}
	}
	if err := api.history.DeleteCapture(ctx, capture.ID); err != nil {
		failure(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (api *API) getLastCapture(c *gin.Context) {
	last, err := api.last.GetLastCapture(c.Request.Context())
	if err != nil {
		api.logger.WithError(err).Error("Failed to load last capture")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load last capture"})
		return
	}
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No capture yet"})
		return
	}
	c.JSON(http.StatusOK, last)
}

// getLastCaptureImage serves the retained image bytes, which is how the
// popup preview is shown
func (api *API) getLastCaptureImage(c *gin.Context) {
	last, err := api.last.GetLastCapture(c.Request.Context())
	if err != nil {
		api.logger.WithError(err).Error("Failed to load last capture")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load last capture"})
		return
	}
	if last == nil || len(last.Data) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No capture yet"})
		return
	}

	c.Header("Content-Disposition", "inline; filename=\""+last.Filename+"\"")
	c.Data(http.StatusOK, last.MIMEType, last.Data)
}

// downloadLastCapture saves the retained capture to object storage, for
// captures taken with auto-download off
func (api *API) downloadLastCapture(c *gin.Context) {
	if api.objects == nil {
		unavailable(c, "capture storage")
		return
	}

	ctx := c.Request.Context()
	last, err := api.last.GetLastCapture(ctx)
	if err != nil {
		api.logger.WithError(err).Error("Failed to load last capture")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load last capture"})
		return
	}
	if last == nil || len(last.Data) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No capture yet"})
		return
	}

	key, err := api.objects.SaveCapture(ctx, last)
	if err != nil {
		api.logger.WithCaptureID(last.ID).WithError(err).Error("Failed to save capture")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save capture"})
		return
	}
	last.ObjectKey = key

	if api.history != nil {
		if err := api.history.SetObjectKey(ctx, last.ID, key); err != nil && !errors.Is(err, database.ErrNotFound) {
			api.logger.WithCaptureID(last.ID).WithError(err).Warn("Failed to record object key")
		}
	}
	if err := api.last.SetLastCapture(ctx, last); err != nil {
		api.logger.WithCaptureID(last.ID).WithError(err).Warn("Failed to update last capture")
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"object_key": key,
		"filename":   last.Filename,
	})
}
