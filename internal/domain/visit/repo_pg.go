package visit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicai/visitflow/internal/platform/gateway"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const visitCols = `id, patient_id, stage, active, symptom, pending_question, question_type,
	max_questions, intake_summary, vitals, previsit_summary, soap_note, postvisit_summary,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	vitals, previsit, soap, postvisit, err := marshalArtifacts(v)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO visits (
			id, patient_id, stage, active, symptom, pending_question, question_type,
			max_questions, intake_summary, vitals, previsit_summary, soap_note, postvisit_summary
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		v.ID, v.PatientID, v.Stage, v.Active, v.Symptom, v.PendingQuestion, v.QuestionType,
		v.MaxQuestions, v.IntakeSummary, vitals, previsit, soap, postvisit,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return scanVisit(r.pool.QueryRow(ctx, `SELECT `+visitCols+` FROM visits WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, v *Visit) error {
	vitals, previsit, soap, postvisit, err := marshalArtifacts(v)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE visits SET
			stage = $2, active = $3, symptom = $4, pending_question = $5, question_type = $6,
			max_questions = $7, intake_summary = $8, vitals = $9, previsit_summary = $10,
			soap_note = $11, postvisit_summary = $12, updated_at = NOW()
		WHERE id = $1`,
		v.ID, v.Stage, v.Active, v.Symptom, v.PendingQuestion, v.QuestionType,
		v.MaxQuestions, v.IntakeSummary, vitals, previsit, soap, postvisit,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM visits WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+visitCols+` FROM visits
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var visits []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		visits = append(visits, v)
	}
	return visits, total, rows.Err()
}

func (r *repoPG) DeactivateOthers(ctx context.Context, patientID, keep uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE visits SET active = FALSE, updated_at = NOW()
		WHERE patient_id = $1 AND id <> $2 AND active`, patientID, keep)
	return err
}

func (r *repoPG) ListTurns(ctx context.Context, visitID uuid.UUID) ([]IntakeTurn, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, visit_id, turn_index, question, answer, answered_at
		FROM intake_turns
		WHERE visit_id = $1
		ORDER BY turn_index`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []IntakeTurn
	for rows.Next() {
		var t IntakeTurn
		if err := rows.Scan(&t.ID, &t.VisitID, &t.Index, &t.Question, &t.Answer, &t.AnsweredAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (r *repoPG) AppendTurn(ctx context.Context, t *IntakeTurn) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO intake_turns (id, visit_id, turn_index, question, answer, answered_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		t.ID, t.VisitID, t.Index, t.Question, t.Answer, t.AnsweredAt,
	)
	return err
}

func (r *repoPG) UpdateTurnAnswer(ctx context.Context, visitID uuid.UUID, index int, newAnswer string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE intake_turns SET answer = $3
		WHERE visit_id = $1 AND turn_index = $2`, visitID, index, newAnswer)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &StaleStateError{Reason: fmt.Sprintf("turn %d not found for visit %s", index, visitID)}
	}
	return nil
}

func marshalArtifacts(v *Visit) (vitals, previsit, soap, postvisit []byte, err error) {
	marshal := func(val interface{}) ([]byte, error) {
		if val == nil {
			return nil, nil
		}
		return json.Marshal(val)
	}
	if v.Vitals != nil {
		if vitals, err = marshal(v.Vitals); err != nil {
			return
		}
	}
	if v.PreVisit != nil {
		if previsit, err = marshal(v.PreVisit); err != nil {
			return
		}
	}
	if v.SOAP != nil {
		if soap, err = marshal(v.SOAP); err != nil {
			return
		}
	}
	if v.PostVisit != nil {
		if postvisit, err = marshal(v.PostVisit); err != nil {
			return
		}
	}
	return
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	var vitals, previsit, soap, postvisit []byte
	err := row.Scan(
		&v.ID, &v.PatientID, &v.Stage, &v.Active, &v.Symptom, &v.PendingQuestion, &v.QuestionType,
		&v.MaxQuestions, &v.IntakeSummary, &vitals, &previsit, &soap, &postvisit,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(vitals) > 0 {
		v.Vitals = &Vitals{}
		if err := json.Unmarshal(vitals, v.Vitals); err != nil {
			return nil, fmt.Errorf("decode vitals: %w", err)
		}
	}
	if len(previsit) > 0 {
		v.PreVisit = &gateway.PreVisitSummary{}
		if err := json.Unmarshal(previsit, v.PreVisit); err != nil {
			return nil, fmt.Errorf("decode previsit summary: %w", err)
		}
	}
	if len(soap) > 0 {
		v.SOAP = &gateway.SOAPNote{}
		if err := json.Unmarshal(soap, v.SOAP); err != nil {
			return nil, fmt.Errorf("decode soap note: %w", err)
		}
	}
	if len(postvisit) > 0 {
		v.PostVisit = &gateway.PostVisitSummary{}
		if err := json.Unmarshal(postvisit, v.PostVisit); err != nil {
			return nil, fmt.Errorf("decode postvisit summary: %w", err)
		}
	}
	return &v, nil
}
