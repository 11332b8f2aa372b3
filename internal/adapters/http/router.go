package http

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dkeye/RoonController/internal/adapters/signal"
	"github.com/dkeye/RoonController/internal/app/orch"
	"github.com/dkeye/RoonController/internal/config"
	"github.com/dkeye/RoonController/internal/core"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	sessionName = "RoonControllerSession"
	deviceField = "device"
	deviceTTL   = 3600 * 24 * 365
)

// DeviceMiddleware gives every browser a stable token in its cookie session.
// It only tags logs; each socket still gets its own session id.
func DeviceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(deviceField).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(deviceField, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save device session")
			}
		}
		c.Set(signal.DeviceKey, token)
		c.Next()
	}
}

// noCacheAssets keeps browsers from holding on to stale UI code.
func noCacheAssets(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".js", ".css":
		return true
	}
	return path == "/" || strings.HasSuffix(path, "/")
}

func staticHandler(root string) gin.HandlerFunc {
	files := http.FileServer(gin.Dir(root, false))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusNotFound)
			return
		}
		if noCacheAssets(c.Request.URL.Path) {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, images core.ImageFetcher) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: deviceTTL, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(DeviceMiddleware())

	h := &handlers{orch: o, images: images, image: cfg.Image}
	ctrl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	r.GET("/up", h.up)

	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})
	api.GET("/zones", h.zones)
	api.GET("/state", h.state)
	api.GET("/image/:imageKey", h.imageByKey)

	r.NoRoute(staticHandler(cfg.StaticPath))

	return r
}
