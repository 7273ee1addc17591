// internal/tiletree/id.go - Tile tree identifiers

// Package tiletree builds, caches and loads the quadtree of imagery tiles that
// forms a model's background map.
package tiletree

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/imagery"
)

// TreeID identifies one background map tile tree
type TreeID struct {
	ProviderName internal.ProviderName `json:"provider_name"`
	MapType      imagery.MapType       `json:"map_type"`
	GroundBias   float64               `json:"ground_bias"`
	ForDrape     bool                  `json:"for_drape"`
}

// CompareTreeIDs orders ids by provider name, map type, ground bias and drape
// flag, in that order
func CompareTreeIDs(a, b TreeID) int {
	if c := strings.Compare(string(a.ProviderName), string(b.ProviderName)); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.MapType), string(b.MapType)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.GroundBias, b.GroundBias); c != 0 {
		return c
	}
	switch {
	case a.ForDrape == b.ForDrape:
		return 0
	case !a.ForDrape:
		return -1
	default:
		return 1
	}
}

// Key returns a string unique to the id. Ids that CompareTreeIDs treats as
// equal share a key.
func (id TreeID) Key() string {
	groundBias := id.GroundBias
	if groundBias == 0 {
		// -0 and +0 compare equal
		groundBias = 0
	}
	return fmt.Sprintf("%s:%s:%v:%t", id.ProviderName, id.MapType, groundBias, id.ForDrape)
}

func (id TreeID) String() string {
	return id.Key()
}
