package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/telehealth-booking/internal/identity"
	redisclient "github.com/hackgods/telehealth-booking/internal/redis"
)

// Directory answers whether a doctor exists. Implemented by the appointment repositories.
type Directory interface {
	HasDoctor(ctx context.Context, doctorID uuid.UUID) (bool, error)
}

// Service owns edits to doctors' declared hours.
type Service struct {
	store   Store
	doctors Directory
	// serialises read-modify-write edits per doctor, across replicas when Redis-backed
	locker redisclient.Locker
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(store Store, doctors Directory, locker redisclient.Locker, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		doctors: doctors,
		locker:  locker,
		logger:  logger.With().Str("service", "availability").Logger(),
		now:     time.Now,
	}
}

// Get returns the doctor's availability; a doctor who never declared hours gets an empty one.
func (s *Service) Get(ctx context.Context, doctorID uuid.UUID) (*Availability, error) {
	if err := s.ensureDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.load(ctx, doctorID)
}

func (s *Service) SetWeekly(ctx context.Context, actor identity.Actor, doctorID uuid.UUID, weekly Weekly) (*Availability, error) {
	norm, err := NormalizeWeekly(weekly)
	if err != nil {
		return nil, err
	}
	return s.edit(ctx, actor, doctorID, func(a *Availability) error {
		a.Weekly = norm
		return nil
	})
}

func (s *Service) AddBlock(ctx context.Context, actor identity.Actor, doctorID uuid.UUID, b Block) (*Availability, error) {
	norm, err := NormalizeBlock(b)
	if err != nil {
		return nil, err
	}
	norm.ID = uuid.New()
	return s.edit(ctx, actor, doctorID, func(a *Availability) error {
		a.Blocks = append(a.Blocks, norm)
		return nil
	})
}

func (s *Service) RemoveBlock(ctx context.Context, actor identity.Actor, doctorID, blockID uuid.UUID) (*Availability, error) {
	return s.edit(ctx, actor, doctorID, func(a *Availability) error {
		for i, b := range a.Blocks {
			if b.ID == blockID {
				a.Blocks = append(a.Blocks[:i], a.Blocks[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("block %s: %w", blockID, ErrNotFound)
	})
}

func (s *Service) edit(ctx context.Context, actor identity.Actor, doctorID uuid.UUID, mutate func(*Availability) error) (*Availability, error) {
	if !actor.IsAdmin() && (actor.Role != identity.RoleDoctor || actor.UserID != doctorID) {
		return nil, ErrForbidden
	}
	if err := s.ensureDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	var a *Availability
	err := s.locker.WithLock(ctx, redisclient.AvailabilityKey(doctorID), func(lockCtx context.Context) error {
		current, err := s.load(lockCtx, doctorID)
		if err != nil {
			return err
		}
		if err := mutate(current); err != nil {
			return err
		}
		current.UpdatedAt = s.now().UTC()

		if err := s.store.Save(lockCtx, current); err != nil {
			return err
		}
		a = current
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return nil, ErrEditBusy
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("doctor_id", doctorID.String()).
		Str("actor_role", string(actor.Role)).
		Int("days", len(a.Weekly)).
		Int("blocks", len(a.Blocks)).
		Msg("availability updated")
	return a, nil
}

func (s *Service) load(ctx context.Context, doctorID uuid.UUID) (*Availability, error) {
	a, err := s.store.Get(ctx, doctorID)
	if errors.Is(err, ErrNotFound) {
		return Empty(doctorID), nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ensureDoctor(ctx context.Context, doctorID uuid.UUID) error {
	if s.doctors == nil {
		return nil
	}
	ok, err := s.doctors.HasDoctor(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("look up doctor: %w", err)
	}
	if !ok {
		return fmt.Errorf("doctor %s: %w", doctorID, ErrNotFound)
	}
	return nil
}
