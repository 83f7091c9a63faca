package overlay

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Error codes shared across the engine.
const (
	CodeFetchFailed        = "fetch_failed"
	CodeNoMatchingResource = "no_matching_resource"
	CodeRenderAttachFailed = "render_attach_failed"
)

// BoundaryResource is the metadata and geometry for one country boundary.
type BoundaryResource struct {
	Country        string
	Features       *geojson.FeatureCollection
	FeatureCount   int
	HoverAttribute string
	MaskRef        string
	Bounds         orb.Bound
}

// LegendClass is one entry of a raster classification legend.
type LegendClass struct {
	Label string  `json:"label"`
	Color string  `json:"color"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// LegendSpec is the display legend derived from a raster's classification.
type LegendSpec struct {
	Title   string        `json:"title"`
	Units   string        `json:"units,omitempty"`
	Classes []LegendClass `json:"classes,omitempty"`
}

// RasterResource describes one climate or giri raster available for a country.
type RasterResource struct {
	Name      string
	Scenario  string
	YearRange string
	Season    string
	URL       string
	Legend    *LegendSpec
}

// EnergyResource is one energy infrastructure point layer for a country.
type EnergyResource struct {
	Type              string
	CapacityAttribute string
	IconPath          string
	Features          *geojson.FeatureCollection
}

// Source provides overlay metadata and geometry. The coalescing resource
// cache wraps a Source so concurrent map views share one fetch per resource.
type Source interface {
	Boundary(ctx context.Context, country string) (BoundaryResource, error)
	Rasters(ctx context.Context, country string, cat Category) ([]RasterResource, error)
	Energy(ctx context.Context, country string) ([]EnergyResource, error)
}

// MaskFetcher resolves a precomputed inverse-mask reference to its geometry.
type MaskFetcher interface {
	FetchMask(ctx context.Context, ref string) (*geojson.FeatureCollection, error)
}

// MatchRaster selects the raster a descriptor asks for, nil when absent.
func MatchRaster(rasters []RasterResource, d Descriptor) *RasterResource {
	for i := range rasters {
		r := &rasters[i]
		if r.Name != d.Name {
			continue
		}
		if d.Scenario != "" && r.Scenario != d.Scenario {
			continue
		}
		if d.YearRange != "" && r.YearRange != d.YearRange {
			continue
		}
		if d.Season != "" && r.Season != d.Season {
			continue
		}
		return r
	}
	return nil
}
