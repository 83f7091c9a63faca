package catalog

import (
	"context"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/escapdev/overlaysync/internal/domain/overlay"
)

// Statistics summarize a raster's value range.
type Statistics struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// ClimateLayer is one climate raster available for a country.
type ClimateLayer struct {
	ID             int64               `json:"id"`
	Variable       string              `json:"variable"`
	Scenario       string              `json:"scenario"`
	YearRange      string              `json:"yearRange"`
	Season         string              `json:"season"`
	Statistics     Statistics          `json:"statistics"`
	Classification *overlay.LegendSpec `json:"classification,omitempty"`
	LayerName      string              `json:"layerName"`
	WMSURL         string              `json:"wmsUrl"`
}

// GiriLayer is one GIRI hazard raster available for a country.
type GiriLayer struct {
	ID             int64               `json:"id"`
	Variable       string              `json:"variable"`
	Scenario       string              `json:"scenario"`
	Statistics     Statistics          `json:"statistics"`
	Classification *overlay.LegendSpec `json:"classification,omitempty"`
	LayerName      string              `json:"layerName"`
	WMSURL         string              `json:"wmsUrl"`
}

// EnergyLayer is one energy infrastructure point layer for a country.
type EnergyLayer struct {
	ID                 int64                      `json:"id"`
	InfrastructureType string                     `json:"infrastructureType"`
	CapacityAttribute  string                     `json:"capacityAttribute"`
	IconPath           string                     `json:"iconPath"`
	LayerName          string                     `json:"layerName"`
	Features           *geojson.FeatureCollection `json:"features,omitempty"`
}

// BoundaryLayer is the administrative boundary record for a country.
type BoundaryLayer struct {
	ID             int64                      `json:"id"`
	HoverAttribute string                     `json:"hoverAttribute"`
	FeatureCount   int                        `json:"featureCount"`
	Bounds         [4]float64                 `json:"bounds"` // minX, minY, maxX, maxY
	MaskRef        string                     `json:"maskRef,omitempty"`
	LayerName      string                     `json:"layerName"`
	Features       *geojson.FeatureCollection `json:"features,omitempty"`
}

// CountryLayers aggregates everything available for one country.
type CountryLayers struct {
	Country    string          `json:"country"`
	Climate    []ClimateLayer  `json:"climate"`
	Giri       []GiriLayer     `json:"giri"`
	Energy     []EnergyLayer   `json:"energy"`
	Boundaries []BoundaryLayer `json:"boundaries"`
}

// Repository loads catalog records from persistent storage.
type Repository interface {
	CountryLayers(ctx context.Context, country string) (CountryLayers, bool, error)
	Countries(ctx context.Context) ([]string, error)
}

// Store caches assembled country layer lists.
type Store interface {
	Get(ctx context.Context, country string) (CountryLayers, bool, error)
	Set(ctx context.Context, country string, layers CountryLayers, ttl time.Duration) error
	Invalidate(ctx context.Context, country string) error
}
