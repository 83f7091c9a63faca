package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/escapdev/overlaysync/internal/domain/catalog"
	"github.com/escapdev/overlaysync/internal/domain/overlay"
	apperrors "github.com/escapdev/overlaysync/pkg/errors"
)

// Handler wires the HTTP transport to the overlay engine and the catalog.
type Handler struct {
	engine     *overlay.Engine
	catalogSvc catalog.Service
	logger     *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(engine *overlay.Engine, catalogSvc catalog.Service, logger *slog.Logger) *Handler {
	return &Handler{
		engine:     engine,
		catalogSvc: catalogSvc,
		logger:     logger.With("component", "http.handler"),
	}
}

type overlayRequest struct {
	Name      string `json:"name" binding:"required"`
	Scenario  string `json:"scenario"`
	YearRange string `json:"yearRange"`
	Season    string `json:"season"`
	Opacity   *int   `json:"opacity"`
	Visible   *bool  `json:"visible"`
}

// SetOverlay handles PUT /maps/:mapId/overlays/:category.
func (h *Handler) SetOverlay(c *gin.Context) {
	cat, ok := h.bindCategory(c)
	if !ok {
		return
	}
	var req overlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	d := overlay.Descriptor{
		Category:  cat,
		Name:      req.Name,
		Scenario:  req.Scenario,
		YearRange: req.YearRange,
		Season:    req.Season,
		Opacity:   100,
		Visible:   true,
	}
	if req.Opacity != nil {
		d.Opacity = *req.Opacity
	}
	if req.Visible != nil {
		d.Visible = *req.Visible
	}

	if err := h.engine.SetOverlay(c.Param("mapId"), d); err != nil {
		h.abortDomain(c, "set_overlay_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

type mutateRequest struct {
	Opacity *int  `json:"opacity"`
	Visible *bool `json:"visible"`
}

// MutateOverlay handles PATCH /maps/:mapId/overlays/:category for in-place
// opacity/visibility changes.
func (h *Handler) MutateOverlay(c *gin.Context) {
	cat, ok := h.bindCategory(c)
	if !ok {
		return
	}
	var req mutateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if req.Opacity == nil && req.Visible == nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "nothing to mutate", nil))
		return
	}

	mapID := c.Param("mapId")
	if req.Opacity != nil {
		if err := h.engine.SetOpacity(mapID, cat, *req.Opacity); err != nil {
			h.abortDomain(c, "mutate_overlay_failed", err)
			return
		}
	}
	if req.Visible != nil {
		if err := h.engine.SetVisibility(mapID, cat, *req.Visible); err != nil {
			h.abortDomain(c, "mutate_overlay_failed", err)
			return
		}
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// RemoveOverlay handles DELETE /maps/:mapId/overlays/:category.
func (h *Handler) RemoveOverlay(c *gin.Context) {
	cat, ok := h.bindCategory(c)
	if !ok {
		return
	}
	if err := h.engine.RemoveOverlay(c.Param("mapId"), cat); err != nil {
		h.abortDomain(c, "remove_overlay_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

type replaceRequest struct {
	Overlays []overlay.Descriptor `json:"overlays"`
}

// ReplaceOverlays handles PUT /maps/:mapId/overlays (global resync).
func (h *Handler) ReplaceOverlays(c *gin.Context) {
	var req replaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if err := h.engine.ReplaceOverlays(c.Param("mapId"), req.Overlays); err != nil {
		h.abortDomain(c, "replace_overlays_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

type countryRequest struct {
	Country string `json:"country" binding:"required"`
}

// SetCountry handles PUT /maps/:mapId/country.
func (h *Handler) SetCountry(c *gin.Context) {
	var req countryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if err := h.engine.SetCountry(c.Param("mapId"), req.Country); err != nil {
		h.abortDomain(c, "set_country_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// DesiredState handles GET /maps/:mapId/overlays.
func (h *Handler) DesiredState(c *gin.Context) {
	state := h.engine.Desired(c.Param("mapId"))
	descriptors := make([]overlay.Descriptor, 0, len(state.Descriptors))
	for _, vd := range state.Descriptors {
		descriptors = append(descriptors, vd.Descriptor)
	}
	c.JSON(http.StatusOK, gin.H{
		"mapId":    state.MapID,
		"country":  state.Country,
		"overlays": descriptors,
	})
}

// Layers handles GET /maps/:mapId/layers.
func (h *Handler) Layers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"layers": h.engine.Layers(c.Param("mapId"))})
}

// Legend handles GET /maps/:mapId/legend.
func (h *Handler) Legend(c *gin.Context) {
	legend, ok := h.engine.Legend(c.Param("mapId"))
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "no_active_legend", "no raster layer active", nil))
		return
	}
	c.JSON(http.StatusOK, legend)
}

// HitTest handles POST /maps/:mapId/hittest.
func (h *Handler) HitTest(c *gin.Context) {
	var px overlay.Pixel
	if err := c.ShouldBindJSON(&px); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	result := h.engine.Hit(c.Param("mapId"), px)
	if result == nil {
		c.JSON(http.StatusOK, gin.H{"hit": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hit": true, "result": result})
}

// Events handles GET /maps/:mapId/events as a Server-Sent Events stream.
func (h *Handler) Events(c *gin.Context) {
	mapID := c.Param("mapId")
	events, cancel := h.engine.Subscribe(mapID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "stream_unsupported", "streaming not supported", nil))
		return
	}

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("marshal event failed", "error", err)
				continue
			}
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(payload)
			c.Writer.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

// CountryLayers handles GET /catalog/:country.
func (h *Handler) CountryLayers(c *gin.Context) {
	layers, err := h.catalogSvc.CountryLayers(c.Request.Context(), c.Param("country"))
	if err != nil {
		h.abortDomain(c, "catalog_failed", err)
		return
	}
	c.JSON(http.StatusOK, layers)
}

// Countries handles GET /catalog.
func (h *Handler) Countries(c *gin.Context) {
	countries, err := h.catalogSvc.Countries(c.Request.Context())
	if err != nil {
		h.abortDomain(c, "catalog_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"countries": countries})
}

// InvalidateCountry handles POST /catalog/:country/invalidate.
func (h *Handler) InvalidateCountry(c *gin.Context) {
	if err := h.catalogSvc.Invalidate(c.Request.Context(), c.Param("country")); err != nil {
		h.abortDomain(c, "catalog_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
}

func (h *Handler) bindCategory(c *gin.Context) (overlay.Category, bool) {
	cat, err := overlay.ParseCategory(c.Param("category"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return "", false
	}
	return cat, true
}

func (h *Handler) abortDomain(c *gin.Context, code string, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperrors.IsCode(err, "invalid_input"):
		status = http.StatusBadRequest
	case apperrors.IsCode(err, overlay.CodeNoMatchingResource):
		status = http.StatusNotFound
	case apperrors.IsCode(err, overlay.CodeFetchFailed):
		status = http.StatusBadGateway
	}
	abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
