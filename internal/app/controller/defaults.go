package controller

import "github.com/palm-beach-pass/pass-api/internal/domain"

func badge(s string) *string { return &s }

// DefaultPasses is the built-in pass catalog used when the network copy cannot be loaded.
func DefaultPasses() []domain.Pass {
	return []domain.Pass{
		{
			ID:       "1-day",
			Name:     "1 Day Pass",
			Duration: 1,
			Prices:   domain.Prices{Adult: 89, Child: 69},
			Features: []string{"Access to all attractions", "Skip-the-line privileges", "Digital QR pass", "Perfect for day trips"},
		},
		{
			ID:       "3-day",
			Name:     "3 Day Pass",
			Duration: 3,
			Prices:   domain.Prices{Adult: 189, Child: 149},
			Features: []string{"Access to all attractions", "Skip-the-line privileges", "Restaurant discounts", "Ideal for weekends"},
			Badge:    badge("Most Popular"),
		},
		{
			ID:       "5-day",
			Name:     "5 Day Pass",
			Duration: 5,
			Prices:   domain.Prices{Adult: 269, Child: 209},
			Features: []string{"Access to all attractions", "VIP experiences included", "Premium dining benefits", "Perfect for vacations"},
		},
		{
			ID:       "7-day",
			Name:     "7 Day Pass",
			Duration: 7,
			Prices:   domain.Prices{Adult: 329, Child: 259},
			Features: []string{"Unlimited attraction access", "All VIP benefits", "Exclusive events access", "Ultimate Palm Beach experience"},
			Badge:    badge("Best Value"),
		},
	}
}

func at(lat, lng float64) *domain.Coordinates { return &domain.Coordinates{Lat: lat, Lng: lng} }

// DefaultAttractions is the built-in attraction catalog used when the network copy cannot be loaded.
func DefaultAttractions() []domain.Attraction {
	return []domain.Attraction{
		{
			ID:           "worth-avenue",
			Name:         "Worth Avenue Shopping",
			Category:     domain.CategoryShopping,
			Description:  "Luxury shopping destination with world-class boutiques, galleries, and dining options.",
			RegularPrice: 0,
			Coordinates:  at(26.7006, -80.0364),
			Image:        "🛍️",
			Gradient:     "linear-gradient(135deg, #FF6B35, #2E86AB)",
			Featured:     true,
		},
		{
			ID:           "flagler-museum",
			Name:         "Flagler Museum",
			Category:     domain.CategoryCulture,
			Description:  "Historic mansion showcasing America's Gilded Age with guided tours and exhibitions.",
			RegularPrice: 18,
			Coordinates:  at(26.7138, -80.0484),
			Image:        "🏛️",
			Gradient:     "linear-gradient(135deg, #2E86AB, #A8E6CF)",
			Featured:     true,
		},
		{
			ID:           "palm-beach-zoo",
			Name:         "Palm Beach Zoo",
			Category:     domain.CategoryFamily,
			Description:  "Home to over 900 animals with interactive exhibits and conservation programs.",
			RegularPrice: 24.95,
			Coordinates:  at(26.6502, -80.6749),
			Image:        "🦁",
			Gradient:     "linear-gradient(135deg, #FF6B35, #FFD23F)",
			Featured:     true,
		},
		{
			ID:           "science-center",
			Name:         "South Florida Science Center",
			Category:     domain.CategoryFamily,
			Description:  "Interactive science museum with planetarium, aquarium, and hands-on exhibits.",
			RegularPrice: 19.95,
			Coordinates:  at(26.6900, -80.0725),
			Image:        "🔬",
			Gradient:     "linear-gradient(135deg, #2E86AB, #FF6B35)",
			Featured:     true,
		},
		{
			ID:           "peanut-island",
			Name:         "Peanut Island Park",
			Category:     domain.CategoryNature,
			Description:  "Scenic island park perfect for snorkeling, camping, and beach activities.",
			RegularPrice: 15,
			Coordinates:  at(26.7755, -80.0450),
			Image:        "🏝️",
			Gradient:     "linear-gradient(135deg, #A8E6CF, #FFD23F)",
		},
		{
			ID:           "breakers",
			Name:         "The Breakers Palm Beach",
			Category:     domain.CategoryDining,
			Description:  "Iconic luxury resort with world-class dining, spa, and oceanfront activities.",
			RegularPrice: 50,
			Coordinates:  at(26.7173, -80.0395),
			Image:        "🏨",
			Gradient:     "linear-gradient(135deg, #FF6B35, #2E86AB)",
			Featured:     true,
		},
		{
			ID:           "norton-museum",
			Name:         "Norton Museum of Art",
			Category:     domain.CategoryCulture,
			Description:  "Premier art museum featuring American, European, and Chinese collections.",
			RegularPrice: 18,
			Coordinates:  at(26.7000, -80.0500),
			Image:        "🎨",
			Gradient:     "linear-gradient(135deg, #2E86AB, #A8E6CF)",
		},
		{
			ID:           "lion-country-safari",
			Name:         "Lion Country Safari",
			Category:     domain.CategoryFamily,
			Description:  "Drive-through safari adventure featuring over 1,000 animals roaming freely across 320 acres.",
			RegularPrice: 39.95,
			Coordinates:  at(26.6700, -80.1800),
			Image:        "🦁",
			Gradient:     "linear-gradient(135deg, #FF6B35, #FFD23F)",
			Featured:     true,
		},
		{
			ID:           "mounts-botanical-garden",
			Name:         "Mounts Botanical Garden",
			Category:     domain.CategoryNature,
			Description:  "Tropical paradise featuring the largest botanical garden in Palm Beach County.",
			RegularPrice: 10,
			Coordinates:  at(26.6400, -80.0900),
			Image:        "🌺",
			Gradient:     "linear-gradient(135deg, #A8E6CF, #FFF3A0)",
		},
		{
			ID:           "rapids-water-park",
			Name:         "Rapids Water Park",
			Category:     domain.CategoryFamily,
			Description:  "South Florida's premier water park featuring thrilling slides, lazy river, and wave pool.",
			RegularPrice: 34.99,
			Coordinates:  at(26.6300, -80.1200),
			Image:        "💦",
			Gradient:     "linear-gradient(135deg, #2E86AB, #FF6B35)",
			Featured:     true,
		},
	}
}
