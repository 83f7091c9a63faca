package catalogrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/geojson"

	"github.com/escapdev/overlaysync/internal/domain/catalog"
	"github.com/escapdev/overlaysync/internal/domain/overlay"
)

// PostgresRepository implements catalog.Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var _ catalog.Repository = (*PostgresRepository)(nil)

// CountryLayers assembles every layer record stored for a country.
func (r *PostgresRepository) CountryLayers(ctx context.Context, country string) (catalog.CountryLayers, bool, error) {
	layers := catalog.CountryLayers{Country: country}

	climate, err := r.climateLayers(ctx, country)
	if err != nil {
		return catalog.CountryLayers{}, false, err
	}
	layers.Climate = climate

	giri, err := r.giriLayers(ctx, country)
	if err != nil {
		return catalog.CountryLayers{}, false, err
	}
	layers.Giri = giri

	energy, err := r.energyLayers(ctx, country)
	if err != nil {
		return catalog.CountryLayers{}, false, err
	}
	layers.Energy = energy

	boundaries, err := r.boundaryLayers(ctx, country)
	if err != nil {
		return catalog.CountryLayers{}, false, err
	}
	layers.Boundaries = boundaries

	found := len(climate)+len(giri)+len(energy)+len(boundaries) > 0
	return layers, found, nil
}

// Countries lists every country with at least one boundary record.
func (r *PostgresRepository) Countries(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT country FROM boundary_data ORDER BY country
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var countries []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		countries = append(countries, c)
	}
	return countries, rows.Err()
}

func (r *PostgresRepository) climateLayers(ctx context.Context, country string) ([]catalog.ClimateLayer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, variable, scenario, year_range, season,
		       min_value, max_value, mean_value, classification, wms_url
		FROM climate_data
		WHERE country = $1
		ORDER BY variable, scenario
	`, country)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.ClimateLayer
	for rows.Next() {
		var (
			l              catalog.ClimateLayer
			classification []byte
		)
		if err := rows.Scan(&l.ID, &l.Variable, &l.Scenario, &l.YearRange, &l.Season,
			&l.Statistics.Min, &l.Statistics.Max, &l.Statistics.Mean,
			&classification, &l.WMSURL); err != nil {
			return nil, err
		}
		l.Classification, err = decodeClassification(classification)
		if err != nil {
			return nil, err
		}
		l.LayerName = fmt.Sprintf("%s_%s_%s", country, l.Variable, l.Scenario)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) giriLayers(ctx context.Context, country string) ([]catalog.GiriLayer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, variable, scenario, min_value, max_value, mean_value, classification, wms_url
		FROM giri_data
		WHERE country = $1
		ORDER BY variable, scenario
	`, country)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.GiriLayer
	for rows.Next() {
		var (
			l              catalog.GiriLayer
			classification []byte
		)
		if err := rows.Scan(&l.ID, &l.Variable, &l.Scenario,
			&l.Statistics.Min, &l.Statistics.Max, &l.Statistics.Mean,
			&classification, &l.WMSURL); err != nil {
			return nil, err
		}
		l.Classification, err = decodeClassification(classification)
		if err != nil {
			return nil, err
		}
		l.LayerName = fmt.Sprintf("%s_%s_%s_giri", country, l.Variable, l.Scenario)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) energyLayers(ctx context.Context, country string) ([]catalog.EnergyLayer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, infrastructure_type, capacity_attribute, icon_path, features
		FROM energy_data
		WHERE country = $1
		ORDER BY infrastructure_type
	`, country)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.EnergyLayer
	for rows.Next() {
		var (
			l        catalog.EnergyLayer
			features []byte
		)
		if err := rows.Scan(&l.ID, &l.InfrastructureType, &l.CapacityAttribute,
			&l.IconPath, &features); err != nil {
			return nil, err
		}
		l.Features, err = decodeFeatures(features)
		if err != nil {
			return nil, err
		}
		l.LayerName = fmt.Sprintf("%s_%s_energy", country, l.InfrastructureType)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) boundaryLayers(ctx context.Context, country string) ([]catalog.BoundaryLayer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, hover_attribute, feature_count,
		       min_x, min_y, max_x, max_y, mask_ref, features
		FROM boundary_data
		WHERE country = $1
		ORDER BY id
	`, country)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.BoundaryLayer
	for rows.Next() {
		var (
			l        catalog.BoundaryLayer
			maskRef  *string
			features []byte
		)
		if err := rows.Scan(&l.ID, &l.HoverAttribute, &l.FeatureCount,
			&l.Bounds[0], &l.Bounds[1], &l.Bounds[2], &l.Bounds[3],
			&maskRef, &features); err != nil {
			return nil, err
		}
		if maskRef != nil {
			l.MaskRef = *maskRef
		}
		l.Features, err = decodeFeatures(features)
		if err != nil {
			return nil, err
		}
		l.LayerName = fmt.Sprintf("%s_boundary", country)
		out = append(out, l)
	}
	return out, rows.Err()
}

func decodeClassification(data []byte) (*overlay.LegendSpec, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var spec overlay.LegendSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	return &spec, nil
}

func decodeFeatures(data []byte) (*geojson.FeatureCollection, error) {
	if len(data) == 0 {
		return nil, nil
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	return fc, nil
}
