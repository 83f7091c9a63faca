package overlay

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"
)

func TestMaskSynthesizerPrefersServerMask(t *testing.T) {
	server := geojson.NewFeatureCollection()
	server.Append(geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}))
	m := NewMaskSynthesizer(&fakeMaskFetcher{fc: server}, discardLogger())

	spec, err := m.Synthesize(context.Background(), "map-1", "thailand", "masks/thailand.geojson")
	require.NoError(t, err)
	require.Same(t, server, spec.Features)
	require.Equal(t, CategoryMask, spec.Category)
	require.Equal(t, "thailand_mask", spec.IdentityKey)
	require.Equal(t, ZBandMask, spec.ZIndex)
}

func TestMaskSynthesizerFallsBackToWorldPolygon(t *testing.T) {
	m := NewMaskSynthesizer(&fakeMaskFetcher{err: ErrNoMask}, discardLogger())

	spec, err := m.Synthesize(context.Background(), "map-1", "thailand", "masks/missing.geojson")
	require.NoError(t, err, "a missing mask object degrades visuals, not functionality")
	require.NotNil(t, spec.Features)
	require.Len(t, spec.Features.Features, 1)

	poly, ok := spec.Features.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly, 1, "the fallback polygon has no hole cut for the country")
	require.Equal(t, orb.Point{-180, -90}, poly[0][0])
	require.Equal(t, true, spec.Features.Features[0].Properties["synthesized"])
}

func TestMaskSynthesizerWithoutRefSynthesizes(t *testing.T) {
	fetcher := &fakeMaskFetcher{err: ErrNoMask}
	m := NewMaskSynthesizer(fetcher, discardLogger())

	spec, err := m.Synthesize(context.Background(), "map-1", "vietnam", "")
	require.NoError(t, err)
	require.NotNil(t, spec.Features)
	require.Equal(t, "vietnam_mask", spec.IdentityKey)
}
