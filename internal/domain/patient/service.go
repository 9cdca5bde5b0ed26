package patient

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a patient does not exist.
var ErrNotFound = errors.New("patient not found")

var mobilePattern = regexp.MustCompile(`^\+?[0-9][0-9 -]{8,14}$`)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Register creates a patient, or returns the existing record when the same
// name and mobile were registered before. Repeat registrations refresh age
// and language.
func (s *Service) Register(ctx context.Context, p *Patient) (*Patient, bool, error) {
	if err := validate(p); err != nil {
		return nil, false, err
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Mobile = strings.TrimSpace(p.Mobile)

	existing, err := s.repo.FindByNameAndMobile(ctx, p.Name, p.Mobile)
	if err == nil {
		existing.Age = p.Age
		if p.Language != "" {
			existing.Language = p.Language
		}
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, false, err
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Msg("patient registered")
	return p, true, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func validate(p *Patient) error {
	name := strings.TrimSpace(p.Name)
	if len(name) < 2 || len(name) > 80 {
		return fmt.Errorf("name must be between 2 and 80 characters")
	}
	if !mobilePattern.MatchString(strings.TrimSpace(p.Mobile)) {
		return fmt.Errorf("mobile number is invalid")
	}
	if p.Age < 0 || p.Age > 120 {
		return fmt.Errorf("age must be between 0 and 120")
	}
	return nil
}
