package overlay

import (
	"fmt"
	"strings"

	apperrors "github.com/escapdev/overlaysync/pkg/errors"
)

// Category identifies the kind of overlay a descriptor controls.
type Category string

const (
	CategoryClimate Category = "climate"
	CategoryGiri    Category = "giri"
	CategoryEnergy  Category = "energy"

	// Registry-only categories; never carried by a descriptor.
	CategoryBoundary Category = "boundary"
	CategoryMask     Category = "mask"
)

// DescriptorCategories lists the categories a user can request, in reconcile order.
var DescriptorCategories = []Category{CategoryClimate, CategoryGiri, CategoryEnergy}

// ParseCategory validates a user supplied category token.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case CategoryClimate, CategoryGiri, CategoryEnergy:
		return c, nil
	}
	return "", apperrors.Wrap("invalid_input", fmt.Sprintf("unknown overlay category %q", raw), nil)
}

// Excludes reports whether two categories are mutually exclusive on one map view.
// Climate and giri rasters occupy the same visual band and evict each other;
// energy points are independent.
func (c Category) Excludes(other Category) bool {
	if c == other {
		return false
	}
	return (c == CategoryClimate || c == CategoryGiri) &&
		(other == CategoryClimate || other == CategoryGiri)
}

// Action names a pending mutation carried by a descriptor.
type Action string

const (
	ActionAdd        Action = "add"
	ActionRemove     Action = "remove"
	ActionOpacity    Action = "opacity"
	ActionVisibility Action = "visibility"
)

// Descriptor is the desired state for one (map view, category) pair.
type Descriptor struct {
	MapID         string   `json:"mapId"`
	Category      Category `json:"category"`
	Name          string   `json:"name"`
	Scenario      string   `json:"scenario,omitempty"`
	YearRange     string   `json:"yearRange,omitempty"`
	Season        string   `json:"season,omitempty"`
	Opacity       int      `json:"opacity"`
	Visible       bool     `json:"visible"`
	PendingAction Action   `json:"pendingAction,omitempty"`
	ActionPayload string   `json:"actionPayload,omitempty"`
}

// IdentityKey derives the stable key used to match a descriptor against
// rendered layers. Heterogeneous upload paths historically produced layer
// names with the category embedded, so the key always carries the token.
func (d Descriptor) IdentityKey() string {
	name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(d.Name), " ", "_"))
	return name + "_" + string(d.Category)
}

// Validate checks the descriptor is safe to store.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.MapID) == "" {
		return apperrors.Wrap("invalid_input", "mapId cannot be empty", nil)
	}
	if _, err := ParseCategory(string(d.Category)); err != nil {
		return err
	}
	if strings.TrimSpace(d.Name) == "" {
		return apperrors.Wrap("invalid_input", "overlay name cannot be empty", nil)
	}
	if d.Opacity < 0 || d.Opacity > 100 {
		return apperrors.Wrap("invalid_input", "opacity must be between 0 and 100", nil)
	}
	switch d.PendingAction {
	case "", ActionAdd, ActionRemove, ActionOpacity, ActionVisibility:
	default:
		return apperrors.Wrap("invalid_input", fmt.Sprintf("unknown pending action %q", d.PendingAction), nil)
	}
	return nil
}
