package purchaserepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/palm-beach-pass/pass-api/internal/adapters/postgres"
	"github.com/palm-beach-pass/pass-api/internal/domain"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/purchaserepo"
)

// Repo is a Postgres implementation of purchaserepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, p purchaserepo.Purchase) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	if p.ID == "" {
		return purchaserepo.ErrAlreadyExists
	}
	payload := []byte(p.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO purchases (purchase_id, client_id, payload, received_at)
		VALUES ($1, $2, $3, $4)
	`,
		string(p.ID),
		string(p.Client),
		payload,
		p.ReceivedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return purchaserepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.PurchaseID) (purchaserepo.Purchase, error) {
	if r.pool == nil {
		return purchaserepo.Purchase{}, errors.New("nil postgres pool")
	}
	row := r.pool.QueryRow(ctx, `
		SELECT purchase_id, client_id, payload, received_at
		FROM purchases
		WHERE purchase_id = $1
	`, string(id))
	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return purchaserepo.Purchase{}, purchaserepo.ErrNotFound
		}
		return purchaserepo.Purchase{}, err
	}
	return p, nil
}

func (r *Repo) List(ctx context.Context) ([]purchaserepo.Purchase, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT purchase_id, client_id, payload, received_at
		FROM purchases
		ORDER BY received_at ASC, purchase_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []purchaserepo.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPurchase(row pgx.Row) (purchaserepo.Purchase, error) {
	var (
		id, client string
		payload    []byte
		p          purchaserepo.Purchase
	)
	if err := row.Scan(&id, &client, &payload, &p.ReceivedAt); err != nil {
		return purchaserepo.Purchase{}, err
	}
	p.ID = domain.PurchaseID(id)
	p.Client = domain.ClientID(client)
	p.Payload = payload
	p.ReceivedAt = p.ReceivedAt.UTC()
	return p, nil
}
