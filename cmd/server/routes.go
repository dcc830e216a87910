package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	zerologlog "github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/MysteryBlokHed/alheure/internal/config"
	"github.com/MysteryBlokHed/alheure/internal/feed"
	"github.com/MysteryBlokHed/alheure/internal/game"
	staticserver "github.com/MysteryBlokHed/alheure/static"
)

// qrSize is the edge length of join QR codes in pixels.
const qrSize = 320

// newRouter builds the HTTP surface; the Socket.IO endpoint is mounted on
// top of it separately.
func newRouter(cfg *config.Config, rm *game.RoomManager) *gin.Engine {
	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		status := c.Writer.Status()
		dur := time.Since(start)
		zerologlog.Info().Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	})

	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	r.GET("/api/session/active", func(c *gin.Context) {
		if code, sess := rm.Active(); sess != nil {
			c.JSON(http.StatusOK, gin.H{"sessionCode": code})
			return
		}
		c.Status(http.StatusNotFound)
	})

	// Session creation, behind basic auth when host credentials are set
	create := []gin.HandlerFunc{}
	if cfg.HostAuth() {
		create = append(create, gin.BasicAuth(gin.Accounts{cfg.HostUser: cfg.HostPass}))
	}
	type createReq struct {
		Config *game.ConfigOverrides `json:"config"`
	}
	create = append(create, func(c *gin.Context) {
		var req createReq
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_config"})
				return
			}
		}
		code, hostToken, err := rm.CreateSession(req.Config.Apply(cfg.Session()))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessionCode": code, "hostToken": hostToken})
	})
	r.POST("/api/host/create", create...)

	r.GET("/api/session/:code/state", func(c *gin.Context) {
		sess, err := rm.Get(c.Param("code"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess.Snapshot())
	})

	// PNG QR code of the session's join URL
	r.GET("/api/session/:code/qr", func(c *gin.Context) {
		code := c.Param("code")
		if _, err := rm.Get(code); err != nil {
			writeError(c, err)
			return
		}
		png, err := qrcode.Encode(cfg.JoinURL(code), qrcode.Medium, qrSize)
		if err != nil {
			zerologlog.Error().Err(err).Str("code", code).Msg("qr generation failed")
			c.String(http.StatusInternalServerError, "qr generation failed")
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	})

	r.GET("/feed/:code", feed.Handler(rm))

	// Serve the embedded web client for all other routes
	r.NoRoute(func(c *gin.Context) {
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	return r
}

func writeError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrNotHost):
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": game.CodeOf(err)})
}
