// Package gateway is the boundary to the external AI text-generation and
// summarization service. Responses arrive in irregular shapes (sometimes
// nested under a data wrapper, sometimes flat); this package normalizes them
// into one canonical result type before they reach the workflow engine.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CompletionMarker is the literal sentinel the generation service may return
// in place of a next question when the intake interview is finished.
const CompletionMarker = "COMPLETE"

// QuestionType describes how a generated question expects to be answered.
type QuestionType string

const (
	QuestionTypeText  QuestionType = "text"
	QuestionTypeYesNo QuestionType = "yes_no"
)

// IntakeRequest carries the conversation context for question generation.
type IntakeRequest struct {
	SessionID       string
	LastQuestion    string
	LastAnswer      string
	InitialSymptoms []string
	AskedQuestions  []string
	PreviousAnswers []string
	QuestionCount   int
	MaxQuestions    int
}

// IntakeResult is the canonical reply to a question-generation call.
// NextQuestion is nil when the wire reply omitted the field or sent null.
type IntakeResult struct {
	NextQuestion      *string      `json:"next_question"`
	Summary           string       `json:"summary"`
	Type              QuestionType `json:"type"`
	CompletionPercent *int         `json:"completion_percent"`
	MaxQuestions      *int         `json:"max_questions"`
}

// Complete reports whether the result signals the end of intake: a nil,
// empty, or CompletionMarker next question.
func (r *IntakeResult) Complete() bool {
	if r.NextQuestion == nil {
		return true
	}
	q := strings.TrimSpace(*r.NextQuestion)
	return q == "" || q == CompletionMarker
}

// Question returns the trimmed next question, or "" when intake is complete.
func (r *IntakeResult) Question() string {
	if r.Complete() {
		return ""
	}
	return strings.TrimSpace(*r.NextQuestion)
}

// QA is one question/answer pair passed to artifact generation.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// VisitContext is the material artifact generation draws from. Stateful
// gateway backends only need the identifiers; the LLM backend uses the rest.
type VisitContext struct {
	PatientID     string
	VisitID       string
	PatientName   string
	Symptom       string
	Turns         []QA
	IntakeSummary string
	VitalsSummary string
	PreVisit      *PreVisitSummary
	SOAP          *SOAPNote
}

// GenerationMeta records provenance for a generated artifact.
type GenerationMeta struct {
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
	Confidence  *float64  `json:"confidence,omitempty"`
}

// PreVisitSummary is the clinician-facing digest generated after intake.
type PreVisitSummary struct {
	Summary   string         `json:"summary"`
	RedFlags  []string       `json:"red_flags"`
	ImageRefs []string       `json:"image_refs,omitempty"`
	Meta      GenerationMeta `json:"meta"`
}

// SOAPNote is the structured clinical note generated from the consultation.
type SOAPNote struct {
	Subjective string         `json:"subjective"`
	Objective  string         `json:"objective"`
	Assessment string         `json:"assessment"`
	Plan       string         `json:"plan"`
	Highlights []string       `json:"highlights"`
	RedFlags   []string       `json:"red_flags"`
	Meta       GenerationMeta `json:"meta"`
}

// PostVisitSummary is the patient-facing wrap-up generated after the SOAP note.
type PostVisitSummary struct {
	ChiefComplaint      string         `json:"chief_complaint"`
	KeyFindings         []string       `json:"key_findings"`
	Diagnosis           string         `json:"diagnosis"`
	Medications         []string       `json:"medications"`
	TestsOrdered        []string       `json:"tests_ordered"`
	PatientInstructions []string       `json:"patient_instructions"`
	RedFlagSymptoms     []string       `json:"red_flag_symptoms"`
	ReassuranceNote     string         `json:"reassurance_note"`
	NextAppointment     string         `json:"next_appointment,omitempty"`
	Meta                GenerationMeta `json:"meta"`
}

// Client is the request/response boundary to the generation service.
// Implementations must not hold workflow state.
type Client interface {
	StartIntake(ctx context.Context, req IntakeRequest) (*IntakeResult, error)
	NextQuestion(ctx context.Context, req IntakeRequest) (*IntakeResult, error)
	// EditAnswer persists a retroactive answer edit. questionNumber is
	// 1-based on the wire.
	EditAnswer(ctx context.Context, patientID, visitID string, questionNumber int, newAnswer string) error
	GeneratePreVisit(ctx context.Context, vc VisitContext) (*PreVisitSummary, error)
	GenerateSOAP(ctx context.Context, vc VisitContext) (*SOAPNote, error)
	GeneratePostVisit(ctx context.Context, vc VisitContext) (*PostVisitSummary, error)
}

// ConnectivityError wraps a transport failure or non-2xx reply. It is
// retryable: the caller's inputs remain valid and no workflow state changed.
type ConnectivityError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ConnectivityError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("generation gateway %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("generation gateway %s failed: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err is (or wraps) a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}
