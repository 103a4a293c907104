package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blackwell-systems/habitboard/internal/hub"
	"github.com/blackwell-systems/habitboard/internal/store"
)

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "habitboard",
		"version": s.cfg.Version,
		"endpoints": gin.H{
			"display": "/api/display",
			"setup":   "/api/setup",
			"log":     "/api/log",
			"refresh": "/api/refresh",
			"status":  "/status",
		},
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{
		"status":    "running",
		"version":   s.cfg.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}
	if s.hubInfo != nil {
		status["hub_host"] = s.hubInfo.Host()
		status["hub_connected"] = s.hubInfo.State() == hub.StateConnected
	}
	c.JSON(http.StatusOK, status)
}

// handleDisplay is the primary device endpoint: it serves the URL of the
// current dashboard image. The snapshot is served from cache; staleness is
// bounded by the tracker, not by the device poll.
func (s *Server) handleDisplay(c *gin.Context) {
	mac := c.GetHeader("ID")
	if mac == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing ID header"})
		return
	}
	s.touchDevice(mac, c.GetHeader("FW-Version"), headerFloat(c, "Battery-Voltage"))

	name, err := s.renderCurrent(c)
	if err != nil {
		s.log.Error("render failed", "device", mac, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}

	c.JSON(http.StatusOK, DisplayResponse{
		Status:          0,
		ImageURL:        s.imageURL(c, name),
		Filename:        name,
		RefreshRate:     s.cfg.RefreshInterval,
		SpecialFunction: "sleep",
		ImageURLTimeout: 30,
	})
}

// handleSetup provisions a device on first boot. A device that already has
// credentials gets the stored ones back.
func (s *Server) handleSetup(c *gin.Context) {
	mac := c.GetHeader("ID")
	if mac == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing ID header"})
		return
	}

	name, err := s.renderCurrent(c)
	if err != nil {
		s.log.Warn("render failed during setup; serving without image", "error", err)
	}

	device, err := s.devices.GetDevice(mac)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "device lookup failed"})
		return
	}

	if device != nil {
		c.JSON(http.StatusOK, SetupResponse{
			Status:     200,
			APIKey:     device.APIKey,
			FriendlyID: device.FriendlyID,
			ImageURL:   s.imageURL(c, name),
			Message:    "Welcome back to habitboard",
		})
		return
	}

	device = &store.Device{
		MacAddress: mac,
		APIKey:     store.GenerateAPIKey(),
		FriendlyID: store.GenerateFriendlyID(),
		CreatedAt:  time.Now(),
	}
	if err := s.devices.CreateDevice(device); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "device provisioning failed"})
		return
	}
	s.log.Info("device provisioned", "friendly_id", device.FriendlyID, "mac", mac)

	c.JSON(http.StatusOK, SetupResponse{
		Status:     200,
		APIKey:     device.APIKey,
		FriendlyID: device.FriendlyID,
		ImageURL:   s.imageURL(c, name),
		Message:    "Welcome to habitboard",
	})
}

func (s *Server) handleLog(c *gin.Context) {
	mac := c.GetHeader("ID")
	var body DeviceLog
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log payload"})
		return
	}
	if mac != "" {
		s.touchDevice(mac, body.FirmwareVersion, body.BatteryVoltage)
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// handleRefresh forces a snapshot refresh, joining any refresh already in
// flight rather than starting a second one.
func (s *Server) handleRefresh(c *gin.Context) {
	snap := s.source.Snapshot(c.Request.Context(), true)
	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"goals":       len(snap.Goals),
		"computed_at": snap.ComputedAt.UTC().Format(time.RFC3339),
		"valid":       snap.Valid,
	})
}

func (s *Server) handleImage(c *gin.Context) {
	name := c.Param("name")
	data, ok := s.renderer.Image(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

// renderCurrent returns the image name for the current snapshot, rendering
// only when the snapshot has changed since the last render.
func (s *Server) renderCurrent(c *gin.Context) (string, error) {
	snap := s.source.Snapshot(c.Request.Context(), false)

	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	if s.renderName != "" && snap.ComputedAt.Equal(s.renderedAt) {
		return s.renderName, nil
	}

	name, err := s.renderer.Render(snap, time.Now())
	if err != nil {
		return "", err
	}
	s.renderedAt = snap.ComputedAt
	s.renderName = name
	return name, nil
}

func (s *Server) touchDevice(mac, firmware string, battery float64) {
	device, err := s.devices.GetDevice(mac)
	if err != nil || device == nil {
		return
	}
	if err := s.devices.TouchDevice(mac, time.Now(), firmware, battery); err != nil {
		s.log.Warn("device update failed", "mac", mac, "error", err)
	}
}

func (s *Server) imageURL(c *gin.Context, name string) string {
	if name == "" {
		return ""
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/images/%s", scheme, c.Request.Host, name)
}

func headerFloat(c *gin.Context, key string) float64 {
	var v float64
	_, _ = fmt.Sscanf(c.GetHeader(key), "%g", &v)
	return v
}
