package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medrec/medrec/internal/platform/audit"
	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/phicrypto"
)

// Service is the PHI-handling layer for patients. Mutations run in a single
// transaction with their audit entry: if the entry cannot be written, the
// mutation rolls back. SSNs are encrypted before they reach the repository
// and decrypted on the way out, with decryption failures surfaced as an
// explicit flag rather than aborting the read.
type Service struct {
	repo     Repository
	cipher   *phicrypto.Keyring
	recorder *audit.Recorder
	logger   zerolog.Logger
}

func NewService(repo Repository, cipher *phicrypto.Keyring, recorder *audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{repo: repo, cipher: cipher, recorder: recorder, logger: logger}
}

func (s *Service) Create(ctx context.Context, actorID string, in Input) (*Patient, error) {
	ssnEnc, err := s.cipher.Encrypt(in.SSN)
	if err != nil {
		return nil, fmt.Errorf("patient: encrypt ssn: %w", err)
	}

	p := &Patient{
		ID:           uuid.New(),
		MRN:          in.MRN,
		GivenName:    in.GivenName,
		FamilyName:   in.FamilyName,
		BirthDate:    in.BirthDate,
		SSNEncrypted: ssnEnc,
	}

	err = db.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, audit.Draft{
			ActorID:      actorID,
			Action:       audit.ActionCreate,
			ResourceType: "patient",
			ResourceID:   &p.ID,
			Details:      map[string]any{"mrn": p.MRN},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.render(p), nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*View, int, error) {
	patients, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views := make([]*View, len(patients))
	for i, p := range patients {
		views[i] = s.render(p)
	}
	return views, total, nil
}

func (s *Service) Update(ctx context.Context, actorID string, id uuid.UUID, in Input) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p.MRN = in.MRN
	p.GivenName = in.GivenName
	p.FamilyName = in.FamilyName
	p.BirthDate = in.BirthDate
	if in.SSN != "" {
		ssnEnc, err := s.cipher.Encrypt(in.SSN)
		if err != nil {
			return nil, fmt.Errorf("patient: encrypt ssn: %w", err)
		}
		p.SSNEncrypted = ssnEnc
	}

	err = db.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, audit.Draft{
			ActorID:      actorID,
			Action:       audit.ActionUpdate,
			ResourceType: "patient",
			ResourceID:   &p.ID,
			Details:      map[string]any{"mrn": p.MRN},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, actorID string, id uuid.UUID) error {
	return db.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, audit.Draft{
			ActorID:      actorID,
			Action:       audit.ActionDelete,
			ResourceType: "patient",
			ResourceID:   &id,
		})
		return err
	})
}

// render decrypts the SSN for output. A failed decryption does not abort the
// read of the record's other fields; the view flags the field as unavailable
// so callers cannot mistake it for an absent value.
func (s *Service) render(p *Patient) *View {
	v := &View{Patient: *p}

	ssn, err := s.cipher.Decrypt(p.SSNEncrypted)
	switch {
	case err == nil:
		v.SSN = ssn
	case errors.Is(err, phicrypto.ErrDecryptionFailed):
		v.SSNUnavailable = true
		s.logger.Error().Err(err).
			Str("patient_id", p.ID.String()).
			Msg("ssn decryption failed")
	default:
		v.SSNUnavailable = true
	}
	return v
}
