package visit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicai/visitflow/internal/platform/gateway"
)

// Stage is a visit's position in the documentation workflow. Stages only
// advance; a patient starting over gets a fresh visit instead of a reset.
type Stage string

const (
	StageRegistration     Stage = "registration"
	StageIntakeInProgress Stage = "intake_in_progress"
	StageIntakeComplete   Stage = "intake_complete"
	StagePreVisitReady    Stage = "previsit_summary_ready"
	StageVitalsPending    Stage = "vitals_pending"
	StageVitalsComplete   Stage = "vitals_complete"
	StageSOAPPending      Stage = "soap_pending"
	StageSOAPComplete     Stage = "soap_complete"
	StagePostVisitDone    Stage = "postvisit_complete"
)

var stageOrder = map[Stage]int{
	StageRegistration:     0,
	StageIntakeInProgress: 1,
	StageIntakeComplete:   2,
	StagePreVisitReady:    3,
	StageVitalsPending:    4,
	StageVitalsComplete:   5,
	StageSOAPPending:      6,
	StageSOAPComplete:     7,
	StagePostVisitDone:    8,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := stageOrder[s]
	return ok
}

// Ordinal returns the stage's position in the workflow sequence.
func (s Stage) Ordinal() int { return stageOrder[s] }

// Before reports whether s precedes other in the workflow.
func (s Stage) Before(other Stage) bool {
	return stageOrder[s] < stageOrder[other]
}

// AtLeast reports whether s is other or any later stage.
func (s Stage) AtLeast(other Stage) bool {
	return stageOrder[s] >= stageOrder[other]
}

// Vitals is the structured vitals payload captured during the visit.
type Vitals struct {
	HeightCM      *float64  `json:"height_cm,omitempty"`
	WeightKG      *float64  `json:"weight_kg,omitempty"`
	SystolicBP    *int      `json:"systolic_bp,omitempty"`
	DiastolicBP   *int      `json:"diastolic_bp,omitempty"`
	PulseBPM      *int      `json:"pulse_bpm,omitempty"`
	TemperatureC  *float64  `json:"temperature_c,omitempty"`
	SpO2Percent   *int      `json:"spo2_percent,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
	RecordedBy    string    `json:"recorded_by,omitempty"`
}

// Summary renders the vitals as a single line for note generation.
func (v Vitals) Summary() string {
	var parts []string
	if v.HeightCM != nil {
		parts = append(parts, fmt.Sprintf("height %.1f cm", *v.HeightCM))
	}
	if v.WeightKG != nil {
		parts = append(parts, fmt.Sprintf("weight %.1f kg", *v.WeightKG))
	}
	if v.SystolicBP != nil && v.DiastolicBP != nil {
		parts = append(parts, fmt.Sprintf("BP %d/%d mmHg", *v.SystolicBP, *v.DiastolicBP))
	}
	if v.PulseBPM != nil {
		parts = append(parts, fmt.Sprintf("pulse %d bpm", *v.PulseBPM))
	}
	if v.TemperatureC != nil {
		parts = append(parts, fmt.Sprintf("temp %.1f C", *v.TemperatureC))
	}
	if v.SpO2Percent != nil {
		parts = append(parts, fmt.Sprintf("SpO2 %d%%", *v.SpO2Percent))
	}
	if v.Notes != "" {
		parts = append(parts, v.Notes)
	}
	return strings.Join(parts, ", ")
}

// Visit maps to the visits table. Stage artifacts are stored as JSONB.
type Visit struct {
	ID              uuid.UUID                 `db:"id" json:"id"`
	PatientID       uuid.UUID                 `db:"patient_id" json:"patient_id"`
	Stage           Stage                     `db:"stage" json:"stage"`
	Active          bool                      `db:"active" json:"active"`
	Symptom         string                    `db:"symptom" json:"symptom"`
	PendingQuestion *string                   `db:"pending_question" json:"pending_question,omitempty"`
	QuestionType    gateway.QuestionType      `db:"question_type" json:"question_type"`
	MaxQuestions    int                       `db:"max_questions" json:"max_questions"`
	IntakeSummary   string                    `db:"intake_summary" json:"intake_summary,omitempty"`
	Vitals          *Vitals                   `db:"vitals" json:"vitals,omitempty"`
	PreVisit        *gateway.PreVisitSummary  `db:"previsit_summary" json:"previsit_summary,omitempty"`
	SOAP            *gateway.SOAPNote         `db:"soap_note" json:"soap_note,omitempty"`
	PostVisit       *gateway.PostVisitSummary `db:"postvisit_summary" json:"postvisit_summary,omitempty"`
	CreatedAt       time.Time                 `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time                 `db:"updated_at" json:"updated_at"`
}

// ObserveMaxQuestions widens the stored question ceiling. Smaller reports are
// ignored so displayed progress never moves backward.
func (v *Visit) ObserveMaxQuestions(max int) {
	if max > v.MaxQuestions {
		v.MaxQuestions = max
	}
}

// AdvanceTo moves the visit forward to target. Backward moves are rejected;
// re-entering the current stage is allowed only for intake in progress, which
// loops on every answered turn.
func (v *Visit) AdvanceTo(target Stage) error {
	if !target.Valid() {
		return fmt.Errorf("unknown stage %q", target)
	}
	if target == v.Stage {
		if v.Stage == StageIntakeInProgress {
			return nil
		}
		return fmt.Errorf("visit already at stage %s", v.Stage)
	}
	if target.Before(v.Stage) {
		return fmt.Errorf("cannot move visit backward from %s to %s", v.Stage, target)
	}
	v.Stage = target
	return nil
}

// IntakeTurn is one question/answer pair in a visit's intake interview.
// Index is 0-based and stable once assigned; only Answer is mutable.
type IntakeTurn struct {
	ID         uuid.UUID `db:"id" json:"id"`
	VisitID    uuid.UUID `db:"visit_id" json:"visit_id"`
	Index      int       `db:"turn_index" json:"index"`
	Question   string    `db:"question" json:"question"`
	Answer     string    `db:"answer" json:"answer"`
	AnsweredAt time.Time `db:"answered_at" json:"answered_at"`
}
