package metadata

import (
	"github.com/paulmach/orb"

	"github.com/escapdev/overlaysync/internal/domain/catalog"
	"github.com/escapdev/overlaysync/internal/domain/overlay"
)

func boundaryResource(country string, b catalog.BoundaryLayer) overlay.BoundaryResource {
	return overlay.BoundaryResource{
		Country:        country,
		Features:       b.Features,
		FeatureCount:   b.FeatureCount,
		HoverAttribute: b.HoverAttribute,
		MaskRef:        b.MaskRef,
		Bounds: orb.Bound{
			Min: orb.Point{b.Bounds[0], b.Bounds[1]},
			Max: orb.Point{b.Bounds[2], b.Bounds[3]},
		},
	}
}

func rasterResources(layers catalog.CountryLayers, cat overlay.Category) []overlay.RasterResource {
	switch cat {
	case overlay.CategoryClimate:
		out := make([]overlay.RasterResource, 0, len(layers.Climate))
		for _, l := range layers.Climate {
			out = append(out, overlay.RasterResource{
				Name:      l.Variable,
				Scenario:  l.Scenario,
				YearRange: l.YearRange,
				Season:    l.Season,
				URL:       l.WMSURL,
				Legend:    l.Classification,
			})
		}
		return out
	case overlay.CategoryGiri:
		out := make([]overlay.RasterResource, 0, len(layers.Giri))
		for _, l := range layers.Giri {
			out = append(out, overlay.RasterResource{
				Name:     l.Variable,
				Scenario: l.Scenario,
				URL:      l.WMSURL,
				Legend:   l.Classification,
			})
		}
		return out
	}
	return nil
}

func energyResources(layers catalog.CountryLayers) []overlay.EnergyResource {
	out := make([]overlay.EnergyResource, 0, len(layers.Energy))
	for _, l := range layers.Energy {
		out = append(out, overlay.EnergyResource{
			Type:              l.InfrastructureType,
			CapacityAttribute: l.CapacityAttribute,
			IconPath:          l.IconPath,
			Features:          l.Features,
		})
	}
	return out
}
