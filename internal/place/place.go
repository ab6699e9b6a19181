// Package place holds the value types shared by the resolver, the
// provider client and the nearby search.
package place

import (
	"strconv"
	"strings"
)

// Category is the coarse place category used to pick a poster.
type Category string

const (
	Restaurant Category = "restaurant"
	Cafe       Category = "cafe"
	Bar        Category = "bar"
	Park       Category = "park"
	Museum     Category = "museum"
	Shop       Category = "shop"
	Other      Category = "other"
)

// Categories lists every known category.
var Categories = []Category{Restaurant, Cafe, Bar, Park, Museum, Shop, Other}

// ParseCategory maps a raw category to a known one. Unknown values map to Other.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return Other
}

// PhotoHandle is the provider's opaque photo reference plus the author
// attributions the provider requires to be displayed with it.
type PhotoHandle struct {
	Name         string   `json:"name"`
	Attributions []string `json:"attributions,omitempty"`
}

// Bounds is a map viewport in degrees.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Valid reports whether the bounds are within lat/lng range and north of south.
func (b Bounds) Valid() bool {
	return b.North >= -90 && b.North <= 90 &&
		b.South >= -90 && b.South <= 90 &&
		b.East >= -180 && b.East <= 180 &&
		b.West >= -180 && b.West <= 180 &&
		b.North >= b.South
}

// Center returns the midpoint of the viewport.
func (b Bounds) Center() (lat, lng float64) {
	return (b.North + b.South) / 2, (b.East + b.West) / 2
}

// CellID is the cache key for a viewport: each edge rounded to two
// decimals and joined N:S:E:W.
func (b Bounds) CellID() string {
	parts := []string{
		strconv.FormatFloat(b.North, 'f', 2, 64),
		strconv.FormatFloat(b.South, 'f', 2, 64),
		strconv.FormatFloat(b.East, 'f', 2, 64),
		strconv.FormatFloat(b.West, 'f', 2, 64),
	}
	return strings.Join(parts, ":")
}

// Place is a nearby search result.
type Place struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Types    []string     `json:"types,omitempty"`
	Lat      float64      `json:"lat"`
	Lng      float64      `json:"lng"`
	Category Category     `json:"category"`
	Photo    *PhotoHandle `json:"photo,omitempty"`
}
