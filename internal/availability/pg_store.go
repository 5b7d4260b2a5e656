package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/telehealth-booking/internal/db"
)

type PgStore struct {
	pool db.Querier
}

func NewPgStore(pool db.Querier) *PgStore {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &PgStore{pool: pool}
}

func (s *PgStore) Get(ctx context.Context, doctorID uuid.UUID) (*Availability, error) {
	var (
		weekly []byte
		blocks []byte
		a      = Availability{DoctorID: doctorID}
	)
	err := s.pool.QueryRow(ctx, `
		SELECT weekly, blocks, updated_at
		FROM doctor_availability
		WHERE doctor_id = $1
	`, doctorID).Scan(&weekly, &blocks, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("availability: load: %w", err)
	}

	if err := json.Unmarshal(weekly, &a.Weekly); err != nil {
		return nil, fmt.Errorf("availability: decode weekly: %w", err)
	}
	if err := json.Unmarshal(blocks, &a.Blocks); err != nil {
		return nil, fmt.Errorf("availability: decode blocks: %w", err)
	}
	if a.Weekly == nil {
		a.Weekly = Weekly{}
	}
	if a.Blocks == nil {
		a.Blocks = []Block{}
	}
	return &a, nil
}

func (s *PgStore) Save(ctx context.Context, a *Availability) error {
	weekly, err := json.Marshal(a.Weekly)
	if err != nil {
		return fmt.Errorf("availability: encode weekly: %w", err)
	}
	blocks, err := json.Marshal(a.Blocks)
	if err != nil {
		return fmt.Errorf("availability: encode blocks: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO doctor_availability (doctor_id, weekly, blocks, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doctor_id) DO UPDATE
		SET weekly = EXCLUDED.weekly,
		    blocks = EXCLUDED.blocks,
		    updated_at = EXCLUDED.updated_at
	`, a.DoctorID, weekly, blocks, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("availability: save: %w", err)
	}
	return nil
}
