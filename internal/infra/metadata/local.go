package metadata

import (
	"context"
	"fmt"

	"github.com/escapdev/overlaysync/internal/domain/catalog"
	"github.com/escapdev/overlaysync/internal/domain/overlay"
	apperrors "github.com/escapdev/overlaysync/pkg/errors"
)

// LocalSource serves overlay metadata straight from the in-process catalog,
// used when no remote metadata service is configured.
type LocalSource struct {
	catalog catalog.Service
}

// NewLocalSource constructs the adapter.
func NewLocalSource(svc catalog.Service) *LocalSource {
	return &LocalSource{catalog: svc}
}

var _ overlay.Source = (*LocalSource)(nil)

// Boundary implements overlay.Source.
func (s *LocalSource) Boundary(ctx context.Context, country string) (overlay.BoundaryResource, error) {
	layers, err := s.catalog.CountryLayers(ctx, country)
	if err != nil {
		return overlay.BoundaryResource{}, err
	}
	if len(layers.Boundaries) == 0 {
		return overlay.BoundaryResource{}, apperrors.Wrap(overlay.CodeNoMatchingResource,
			fmt.Sprintf("no boundary for country %q", country), nil)
	}
	return boundaryResource(country, layers.Boundaries[0]), nil
}

// Rasters implements overlay.Source.
func (s *LocalSource) Rasters(ctx context.Context, country string, cat overlay.Category) ([]overlay.RasterResource, error) {
	layers, err := s.catalog.CountryLayers(ctx, country)
	if err != nil {
		return nil, err
	}
	return rasterResources(layers, cat), nil
}

// Energy implements overlay.Source.
func (s *LocalSource) Energy(ctx context.Context, country string) ([]overlay.EnergyResource, error) {
	layers, err := s.catalog.CountryLayers(ctx, country)
	if err != nil {
		return nil, err
	}
	return energyResources(layers), nil
}
