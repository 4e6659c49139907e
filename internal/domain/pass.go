package domain

import (
	"errors"
	"strings"
)

// Prices is the adult/child price pair of a pass, in dollars.
type Prices struct {
	Adult float64
	Child float64
}

// Pass is an immutable catalog entry.
type Pass struct {
	ID       PassID
	Name     string
	Duration int // days
	Prices   Prices
	Features []string
	// Badge is an optional marketing label; nil means no badge.
	Badge *string
}

// Validate reports whether the pass satisfies the catalog invariants.
func (p Pass) Validate() error {
	if strings.TrimSpace(string(p.ID)) == "" {
		return errors.New("pass id must be non-empty")
	}
	if p.Duration <= 0 {
		return errors.New("pass duration must be positive")
	}
	if p.Prices.Adult < 0 || p.Prices.Child < 0 {
		return errors.New("pass prices must be non-negative")
	}
	return nil
}

// FindPass returns the pass with the given id.
func FindPass(passes []Pass, id PassID) (Pass, bool) {
	for _, p := range passes {
		if p.ID == id {
			return p, true
		}
	}
	return Pass{}, false
}
