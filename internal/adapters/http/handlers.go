package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dkeye/RoonController/internal/app/orch"
	"github.com/dkeye/RoonController/internal/config"
	"github.com/dkeye/RoonController/internal/core"
	"github.com/dkeye/RoonController/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const imageTimeout = 10 * time.Second

type handlers struct {
	orch   *orch.Orchestrator
	images core.ImageFetcher
	image  config.Image
}

func (h *handlers) loopError(c *gin.Context, err error) {
	status := http.StatusServiceUnavailable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	log.Warn().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("orchestrator unavailable")
	c.JSON(status, gin.H{"error": "service unavailable"})
}

func (h *handlers) zones(c *gin.Context) {
	list, err := h.orch.ZoneList(c.Request.Context())
	if err != nil {
		h.loopError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// state projects the zone in ?zone_id=, or the first zone.
func (h *handlers) state(c *gin.Context) {
	snap, err := h.orch.State(c.Request.Context(), domain.ZoneID(c.Query("zone_id")))
	if err != nil {
		h.loopError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) imageByKey(c *gin.Context) {
	key := c.Param("imageKey")
	opts := core.ImageOptions{
		Width:  queryInt(c, "width", h.image.Width),
		Height: queryInt(c, "height", h.image.Height),
		Scale:  h.image.Scale,
		Format: h.image.Format,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), imageTimeout)
	defer cancel()

	contentType, data, err := h.images.GetImage(ctx, key, opts)
	if err != nil {
		log.Debug().Err(err).Str("module", "adapters.http").Str("image", key).Msg("image fetch failed")
		c.String(http.StatusNotFound, "Image not found")
		return
	}

	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.image.MaxAge.Seconds())))
	c.Data(http.StatusOK, contentType, data)
}

func (h *handlers) up(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
