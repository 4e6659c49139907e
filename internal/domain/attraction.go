package domain

import (
	"errors"
	"strings"
)

type Category string

const (
	CategoryShopping  Category = "shopping"
	CategoryCulture   Category = "culture"
	CategoryFamily    Category = "family"
	CategoryNature    Category = "nature"
	CategoryDining    Category = "dining"
	CategoryAdventure Category = "adventure"

	// CategoryAll is the filter sentinel that matches every category.
	CategoryAll Category = "all"
)

var categoryIcons = map[Category]string{
	CategoryShopping:  "🛍️",
	CategoryCulture:   "🏛️",
	CategoryFamily:    "👨‍👩‍👧‍👦",
	CategoryNature:    "🌿",
	CategoryDining:    "🍽️",
	CategoryAdventure: "🎯",
}

var categoryColors = map[Category]string{
	CategoryShopping:  "#FF6B35",
	CategoryCulture:   "#2E86AB",
	CategoryFamily:    "#FFD23F",
	CategoryNature:    "#A8E6CF",
	CategoryDining:    "#FF6B35",
	CategoryAdventure: "#2E86AB",
}

// Icon returns the display glyph for the category.
func (c Category) Icon() string {
	if v, ok := categoryIcons[c]; ok {
		return v
	}
	return "🎢"
}

// MarkerColor returns the map marker colour for the category.
func (c Category) MarkerColor() string {
	if v, ok := categoryColors[c]; ok {
		return v
	}
	return "#FF6B35"
}

// Matches reports whether an attraction of category other is visible under filter c.
func (c Category) Matches(other Category) bool {
	return c == CategoryAll || c == other
}

type Coordinates struct {
	Lat float64
	Lng float64
}

// Attraction is an immutable catalog entry.
type Attraction struct {
	ID          AttractionID
	Name        string
	Category    Category
	Description string
	// RegularPrice is the walk-up price; 0 means free.
	RegularPrice float64
	// Coordinates is nil when the attraction has no map position.
	Coordinates *Coordinates
	Image       string // display glyph
	Gradient    string
	Featured    bool
}

func (a Attraction) Validate() error {
	if strings.TrimSpace(string(a.ID)) == "" {
		return errors.New("attraction id must be non-empty")
	}
	if a.RegularPrice < 0 {
		return errors.New("attraction regularPrice must be non-negative")
	}
	return nil
}

// FeaturedAttractions returns at most limit featured attractions, preserving order.
func FeaturedAttractions(list []Attraction, limit int) []Attraction {
	out := make([]Attraction, 0, limit)
	for _, a := range list {
		if len(out) >= limit {
			break
		}
		if a.Featured {
			out = append(out, a)
		}
	}
	return out
}

// FindAttraction returns the attraction with the given id.
func FindAttraction(list []Attraction, id AttractionID) (Attraction, bool) {
	for _, a := range list {
		if a.ID == id {
			return a, true
		}
	}
	return Attraction{}, false
}
