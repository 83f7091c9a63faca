package overlay

import (
	"context"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	apperrors "github.com/escapdev/overlaysync/pkg/errors"
)

// Visual defaults for the world-minus-country mask.
const (
	maskOpacity   = 0.65
	maskFillColor = "#0b1d2a"
)

// MaskSynthesizer builds the "world minus country" overlay. A precomputed
// server mask is preferred because it is topologically exact; otherwise a
// world-spanning translucent polygon is synthesized, relying on z-order to
// reveal the country. The fallback deliberately skips hole-cutting: the
// boundary stroke above it already delineates the country edge.
type MaskSynthesizer struct {
	masks  MaskFetcher
	logger *slog.Logger
}

// NewMaskSynthesizer constructs the synthesizer.
func NewMaskSynthesizer(masks MaskFetcher, logger *slog.Logger) *MaskSynthesizer {
	return &MaskSynthesizer{masks: masks, logger: logger.With("component", "overlay.mask")}
}

// Synthesize produces the mask layer spec for a map view. maskRef may be
// empty, in which case the client-side approximation is used.
func (m *MaskSynthesizer) Synthesize(ctx context.Context, mapID, country, maskRef string) (LayerSpec, error) {
	spec := LayerSpec{
		MapID:       mapID,
		Category:    CategoryMask,
		IdentityKey: country + "_mask",
		Kind:        LayerKindMask,
		ZIndex:      ZIndexFor(CategoryMask),
		Opacity:     maskOpacity,
		Visible:     true,
		Attributes:  map[string]any{"fill": maskFillColor},
	}

	if maskRef != "" {
		fc, err := m.masks.FetchMask(ctx, maskRef)
		if err == nil {
			spec.Features = fc
			return spec, nil
		}
		// Fall through to the synthesized approximation so a missing mask
		// object degrades visuals, not functionality.
		m.logger.Warn("server mask unavailable, synthesizing fallback",
			"map_id", mapID, "country", country, "mask_ref", maskRef, "error", err)
	}

	spec.Features = worldMask()
	return spec, nil
}

// worldMask returns a single polygon covering the whole WGS84 extent.
func worldMask() *geojson.FeatureCollection {
	ring := orb.Ring{
		{-180, -90},
		{-180, 90},
		{180, 90},
		{180, -90},
		{-180, -90},
	}
	feature := geojson.NewFeature(orb.Polygon{ring})
	feature.Properties = geojson.Properties{"synthesized": true}
	fc := geojson.NewFeatureCollection()
	fc.Append(feature)
	return fc
}

// ErrNoMask signals a mask reference that resolved to nothing.
var ErrNoMask = apperrors.Wrap(CodeNoMatchingResource, "mask object not found", nil)
