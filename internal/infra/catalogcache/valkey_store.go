package catalogcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/escapdev/overlaysync/internal/domain/catalog"
)

// ValkeyStore caches assembled country layer lists in a Valkey-compatible
// database so multiple dashboard processes share one warm catalog.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs the store.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "catalog"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

var _ catalog.Store = (*ValkeyStore)(nil)

// Get implements catalog.Store.
func (s *ValkeyStore) Get(ctx context.Context, country string) (catalog.CountryLayers, bool, error) {
	cmd := s.client.B().Get().Key(s.key(country)).Build()
	payload, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return catalog.CountryLayers{}, false, nil
		}
		return catalog.CountryLayers{}, false, err
	}
	var layers catalog.CountryLayers
	if err := json.Unmarshal([]byte(payload), &layers); err != nil {
		return catalog.CountryLayers{}, false, err
	}
	return layers, true, nil
}

// Set implements catalog.Store.
func (s *ValkeyStore) Set(ctx context.Context, country string, layers catalog.CountryLayers, ttl time.Duration) error {
	payload, err := json.Marshal(layers)
	if err != nil {
		return err
	}
	if ttl > 0 {
		cmd := s.client.B().Set().Key(s.key(country)).Value(string(payload)).
			Ex(ttl).Build()
		return s.client.Do(ctx, cmd).Error()
	}
	cmd := s.client.B().Set().Key(s.key(country)).Value(string(payload)).Build()
	return s.client.Do(ctx, cmd).Error()
}

// Invalidate implements catalog.Store.
func (s *ValkeyStore) Invalidate(ctx context.Context, country string) error {
	cmd := s.client.B().Del().Key(s.key(country)).Build()
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) key(country string) string {
	return s.prefix + ":layers:" + country
}
