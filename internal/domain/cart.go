package domain

import "time"

// CartLine is a denormalized snapshot of a selected pass.
type CartLine struct {
	PassID     PassID
	Name       string
	Duration   int
	AdultPrice float64
	ChildPrice float64
	AdultQty   int
	ChildQty   int
	CreatedAt  time.Time
}

// NewCartLine builds the default line for a pass selection: one adult, no children.
func NewCartLine(p Pass, now time.Time) CartLine {
	return CartLine{
		PassID:     p.ID,
		Name:       p.Name,
		Duration:   p.Duration,
		AdultPrice: p.Prices.Adult,
		ChildPrice: p.Prices.Child,
		AdultQty:   1,
		ChildQty:   0,
		CreatedAt:  now,
	}
}

// Total is the line price for the selected quantities.
func (l CartLine) Total() float64 {
	return float64(l.AdultQty)*l.AdultPrice + float64(l.ChildQty)*l.ChildPrice
}

// Cart is the ordered list of selected lines. Selecting a pass replaces the whole cart.
type Cart []CartLine

// Count is the number of lines, shown as the cart badge.
func (c Cart) Count() int { return len(c) }

// Total sums every line.
func (c Cart) Total() float64 {
	var t float64
	for _, l := range c {
		t += l.Total()
	}
	return t
}
