package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

func (api *API) getPreferences(c *gin.Context) {
	prefs, err := api.prefs.GetPreferences(c.Request.Context())
	if err != nil {
		api.logger.WithError(err).Error("Failed to load preferences")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load preferences"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

type preferencesRequest struct {
	IncludeSubtitles *bool  `json:"include_subtitles"`
	AutoDownload     *bool  `json:"auto_download"`
	Format           string `json:"format"`
}

// updatePreferences applies the fields present in the body
func (api *API) updatePreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	prefs, err := api.prefs.GetPreferences(ctx)
	if err != nil {
		api.logger.WithError(err).Error("Failed to load preferences")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load preferences"})
		return
	}

	if req.IncludeSubtitles != nil {
		prefs.IncludeSubtitles = *req.IncludeSubtitles
	}
	if req.AutoDownload != nil {
		prefs.AutoDownload = *req.AutoDownload
	}
	if req.Format != "" {
		format, err := models.ParseFormat(req.Format)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		prefs.Format = format
	}

	if err := api.prefs.SetPreferences(ctx, prefs); err != nil {
		api.logger.WithError(err).Error("Failed to save preferences")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save preferences"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}
