package controller

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/palm-beach-pass/pass-api/internal/domain"
)

// Persisted keys.
const (
	KeyAuth             = "pbp_auth"
	KeyCart             = "pbp_cart"
	KeyInstallDismissed = "pbp_install_dismissed"
)

const joinDateLayout = "2006-01-02"

type authRecord struct {
	IsLoggedIn bool        `json:"isLoggedIn"`
	User       *userRecord `json:"user"`
	Timestamp  int64       `json:"timestamp"`
}

type userRecord struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	JoinDate string `json:"joinDate"`
}

type cartRecord struct {
	PassID     string  `json:"passId"`
	Name       string  `json:"name"`
	Duration   int     `json:"duration"`
	AdultPrice float64 `json:"adultPrice"`
	ChildPrice float64 `json:"childPrice"`
	AdultQty   int     `json:"adultQty"`
	ChildQty   int     `json:"childQty"`
	Timestamp  int64   `json:"timestamp"`
}

func encodeAuth(s domain.AuthSession) (string, error) {
	b, err := json.Marshal(authRecord{
		IsLoggedIn: true,
		User: &userRecord{
			ID:       string(s.User.ID),
			Email:    s.User.Email,
			Name:     s.User.Name,
			JoinDate: s.User.JoinDate.Format(joinDateLayout),
		},
		Timestamp: s.LoginAt.UnixMilli(),
	})
	return string(b), err
}

// decodeAuth returns nil without error for a well-formed record that does not describe a login.
func decodeAuth(raw string) (*domain.AuthSession, error) {
	var rec authRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	if !rec.IsLoggedIn || rec.User == nil {
		return nil, nil
	}
	var join time.Time
	if rec.User.JoinDate != "" {
		t, err := time.Parse(joinDateLayout, rec.User.JoinDate)
		if err != nil {
			return nil, fmt.Errorf("joinDate: %w", err)
		}
		join = t
	}
	return &domain.AuthSession{
		User: domain.User{
			ID:       domain.UserID(rec.User.ID),
			Email:    rec.User.Email,
			Name:     rec.User.Name,
			JoinDate: join,
		},
		LoginAt: time.UnixMilli(rec.Timestamp).UTC(),
	}, nil
}

func encodeCart(c domain.Cart) (string, error) {
	recs := make([]cartRecord, 0, len(c))
	for _, l := range c {
		recs = append(recs, cartRecord{
			PassID:     string(l.PassID),
			Name:       l.Name,
			Duration:   l.Duration,
			AdultPrice: l.AdultPrice,
			ChildPrice: l.ChildPrice,
			AdultQty:   l.AdultQty,
			ChildQty:   l.ChildQty,
			Timestamp:  l.CreatedAt.UnixMilli(),
		})
	}
	b, err := json.Marshal(recs)
	return string(b), err
}

func decodeCart(raw string) (domain.Cart, error) {
	var recs []cartRecord
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return nil, err
	}
	out := make(domain.Cart, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.CartLine{
			PassID:     domain.PassID(r.PassID),
			Name:       r.Name,
			Duration:   r.Duration,
			AdultPrice: r.AdultPrice,
			ChildPrice: r.ChildPrice,
			AdultQty:   r.AdultQty,
			ChildQty:   r.ChildQty,
			CreatedAt:  time.UnixMilli(r.Timestamp).UTC(),
		})
	}
	return out, nil
}
