package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/substills/internal/capture"
	"github.com/therealutkarshpriyadarshi/substills/internal/controller"
	"github.com/therealutkarshpriyadarshi/substills/internal/queue"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

func (api *API) listTabs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tabs": api.sessions.Tabs()})
}

// loadSnapshot installs the page agent's latest view of a tab
func (api *API) loadSnapshot(c *gin.Context) {
	var snapshot models.PageSnapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snapshot.TabID = c.Param("tab")

	if _, err := api.sessions.Load(&snapshot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if api.screen != nil {
		api.screen.Set(snapshot.TabID, snapshot.Screen)
	}

	api.logger.WithTabID(snapshot.TabID).Debugf("loaded snapshot with %d videos", len(snapshot.Videos))
	c.JSON(http.StatusOK, gin.H{
		"tab_id": snapshot.TabID,
		"videos": len(snapshot.Videos),
	})
}

type screenRequest struct {
	Screen []byte `json:"screen" binding:"required"`
}

// updateScreen replaces only a tab's viewport image, leaving its session and
// hidden chrome alone. Agents push it again after a hide so the fallback
// sees the page without its controls.
func (api *API) updateScreen(c *gin.Context) {
	if api.screen == nil {
		unavailable(c, "static screen")
		return
	}
	tabID := c.Param("tab")
	if _, err := api.sessions.Get(tabID); err != nil {
		failure(c, err)
		return
	}

	var req screenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, _, err := capture.DecodeConfig(req.Screen); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "screen is not a PNG or JPEG image"})
		return
	}

	api.screen.Set(tabID, req.Screen)
	c.Status(http.StatusNoContent)
}

func (api *API) closeTab(c *gin.Context) {
	tabID := c.Param("tab")
	api.sessions.Close(tabID)
	if api.screen != nil {
		api.screen.Set(tabID, nil)
	}
	c.Status(http.StatusNoContent)
}

type captureRequest struct {
	IncludeSubtitles *bool  `json:"include_subtitles"`
	Format           string `json:"format"`
	AutoDownload     *bool  `json:"auto_download"`
}

// captureTab runs a capture; fields left out of the body come from the
// stored preferences.
func (api *API) captureTab(c *gin.Context) {
	var req captureRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	prefs, err := api.controller.Preferences(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load preferences"})
		return
	}

	opts := prefs.CaptureOptions()
	if req.IncludeSubtitles != nil {
		opts.IncludeSubtitles = *req.IncludeSubtitles
	}
	if req.Format != "" {
		format, err := models.ParseFormat(req.Format)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		opts.Format = format
	}
	autoDownload := prefs.AutoDownload
	if req.AutoDownload != nil {
		autoDownload = *req.AutoDownload
	}

	captured, err := api.controller.Capture(c.Request.Context(), controller.Request{
		TabID:        c.Param("tab"),
		Options:      opts,
		AutoDownload: autoDownload,
	})
	if err != nil {
		failure(c, err)
		return
	}

	image := &models.EncodedImage{Format: captured.Format, MIMEType: captured.MIMEType, Data: captured.Data}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"capture":  captured,
		"data_url": image.DataURL(),
	})
}

type commandRequest struct {
	Name string `json:"name"`
}

// sendCommand delivers a keyboard shortcut. With a queue configured the
// worker runs it; otherwise it runs here.
func (api *API) sendCommand(c *gin.Context) {
	var req commandRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Name == "" {
		req.Name = models.CommandTakeScreenshot
	}
	cmd := queue.NewCommand(req.Name, c.Param("tab"))

	if api.commands != nil {
		if req.Name != models.CommandTakeScreenshot {
			failure(c, controller.ErrUnknownCommand)
			return
		}
		if err := api.commands.PublishCommand(c.Request.Context(), cmd); err != nil {
			api.logger.WithError(err).Error("Failed to publish command")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue command"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"command": cmd})
		return
	}

	captured, err := api.controller.HandleCommand(c.Request.Context(), *cmd)
	if err != nil {
		failure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "command": cmd, "capture": captured})
}
