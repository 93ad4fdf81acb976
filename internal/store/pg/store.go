package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"smsrelay/internal/domain"
	"smsrelay/internal/store"
)

const uniqueViolation = "23505"

// Store keeps each message as one row; content and delivery are JSONB documents.
type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) Create(ctx context.Context, rec *domain.Record) (store.Change, error) {
	content, delivery, err := encodeDocs(rec)
	if err != nil {
		return store.Change{}, err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO messages (id, to_phone, content, channel_id, delivery, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
	`, rec.ID, rec.To, content, nullIfEmpty(rec.ChannelID), delivery)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.Change{}, store.ErrExists
		}
		return store.Change{}, err
	}
	return store.Change{ID: rec.ID, After: rec.Clone()}, nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Record, error) {
	return scanRecord(s.DB.QueryRow(ctx, `
		SELECT id, to_phone, content, COALESCE(channel_id,''), delivery
		FROM messages WHERE id=$1
	`, id))
}

// Update locks the row, applies the patch in Go and writes the delivery document
// back inside the same transaction.
func (s *Store) Update(ctx context.Context, id string, p store.Patch) (store.Change, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return store.Change{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := scanRecord(tx.QueryRow(ctx, `
		SELECT id, to_phone, content, COALESCE(channel_id,''), delivery
		FROM messages WHERE id=$1
		FOR UPDATE
	`, id))
	if err != nil {
		return store.Change{}, err
	}

	after := before.Clone()
	if err := store.Apply(after, p); err != nil {
		return store.Change{}, err
	}

	_, delivery, err := encodeDocs(after)
	if err != nil {
		return store.Change{}, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE messages SET delivery=$2, updated_at=now() WHERE id=$1
	`, id, delivery); err != nil {
		return store.Change{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return store.Change{}, err
	}
	return store.Change{ID: id, Before: before, After: after}, nil
}

func (s *Store) Delete(ctx context.Context, id string) (store.Change, error) {
	before, err := scanRecord(s.DB.QueryRow(ctx, `
		DELETE FROM messages WHERE id=$1
		RETURNING id, to_phone, content, COALESCE(channel_id,''), delivery
	`, id))
	if err != nil {
		return store.Change{}, err
	}
	return store.Change{ID: id, Before: before}, nil
}

// Ping is used by readiness checks.
func (s *Store) Ping(ctx context.Context) error { return s.DB.Ping(ctx) }

func scanRecord(row pgx.Row) (*domain.Record, error) {
	var (
		rec                   domain.Record
		contentJSON, delivery []byte
	)
	if err := row.Scan(&rec.ID, &rec.To, &contentJSON, &rec.ChannelID, &delivery); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if len(contentJSON) > 0 {
		if err := json.Unmarshal(contentJSON, &rec.Content); err != nil {
			return nil, fmt.Errorf("decode content of %s: %w", rec.ID, err)
		}
	}
	if len(delivery) > 0 && string(delivery) != "null" {
		rec.Delivery = &domain.Delivery{}
		if err := json.Unmarshal(delivery, rec.Delivery); err != nil {
			return nil, fmt.Errorf("decode delivery of %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func encodeDocs(rec *domain.Record) (content, delivery []byte, err error) {
	content, err = json.Marshal(rec.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("encode content: %w", err)
	}
	if rec.Delivery != nil {
		delivery, err = json.Marshal(rec.Delivery)
		if err != nil {
			return nil, nil, fmt.Errorf("encode delivery: %w", err)
		}
	}
	return content, delivery, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
