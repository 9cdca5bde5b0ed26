package visit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	Update(ctx context.Context, v *Visit) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error)
	// DeactivateOthers retires every active visit of the patient except keep.
	// Retired visits and their intake turns stay queryable as history.
	DeactivateOthers(ctx context.Context, patientID, keep uuid.UUID) error

	// Intake turns
	ListTurns(ctx context.Context, visitID uuid.UUID) ([]IntakeTurn, error)
	AppendTurn(ctx context.Context, t *IntakeTurn) error
	UpdateTurnAnswer(ctx context.Context, visitID uuid.UUID, index int, newAnswer string) error
}
