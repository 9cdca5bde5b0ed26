package visit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicai/visitflow/internal/platform/cache"
	"github.com/clinicai/visitflow/internal/platform/gateway"
	"github.com/clinicai/visitflow/internal/platform/telemetry"
	"github.com/clinicai/visitflow/pkg/progress"
)

// ArtifactKind names a generated stage artifact.
type ArtifactKind string

const (
	ArtifactPreVisit  ArtifactKind = "previsit"
	ArtifactSOAP      ArtifactKind = "soap"
	ArtifactPostVisit ArtifactKind = "postvisit"
)

// RetryPolicy bounds gateway retries. Retries apply only to connectivity
// failures; the triggering inputs stay valid for re-submission.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy retries twice with doubling backoff.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 500 * time.Millisecond}

// Service is the visit workflow engine. It owns stage transitions, the
// answer history, and all generation gateway calls. Workflow-mutating
// operations on one visit are serialized; at most one generation request is
// in flight per (visit, stage).
type Service struct {
	repo    Repository
	gw      gateway.Client
	cache   cache.Store
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	retry   RetryPolicy

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// NewService constructs the workflow engine. The cache store is a resume
// hint surface only and may be a no-op implementation.
func NewService(repo Repository, gw gateway.Client, store cache.Store, logger zerolog.Logger, metrics *telemetry.Metrics, retry RetryPolicy) *Service {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy
	}
	if metrics == nil {
		metrics = telemetry.Default
	}
	if store == nil {
		store = cache.NewMemoryStore()
	}
	return &Service{
		repo:     repo,
		gw:       gw,
		cache:    store,
		logger:   logger,
		metrics:  metrics,
		retry:    retry,
		sessions: make(map[uuid.UUID]*session),
	}
}

// session is the in-memory coordination state for one visit.
type session struct {
	mu         sync.Mutex
	inflight   map[Stage]uuid.UUID
	retryCount int
	est        *progress.Estimator
}

func (s *Service) session(visitID uuid.UUID) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[visitID]
	if !ok {
		sess = &session{
			inflight: make(map[Stage]uuid.UUID),
			est:      progress.NewEstimator(),
		}
		s.sessions[visitID] = sess
	}
	return sess
}

// dropSession evicts the coordination state for a visit once it can no
// longer accept work. Operations already holding the session keep their
// pointer; a later call simply builds a fresh one.
func (s *Service) dropSession(visitID uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, visitID)
	s.mu.Unlock()
}

// reserve claims the in-flight slot for a stage. The returned token must
// still match at commit time or the response is discarded.
func (sess *session) reserve(stage Stage) (uuid.UUID, bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, busy := sess.inflight[stage]; busy {
		return uuid.Nil, false
	}
	token := uuid.New()
	sess.inflight[stage] = token
	return token, true
}

func (sess *session) valid(stage Stage, token uuid.UUID) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.inflight[stage] == token
}

func (sess *session) release(stage Stage, token uuid.UUID) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.inflight[stage] == token {
		delete(sess.inflight, stage)
	}
}

func (sess *session) abandon() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.inflight = make(map[Stage]uuid.UUID)
}

func (sess *session) bumpRetry() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.retryCount++
}

func (sess *session) retries() int {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.retryCount
}

// SubmitResult reports the outcome of startIntake / submitAnswer.
type SubmitResult struct {
	NextQuestion      *string              `json:"next_question,omitempty"`
	QuestionType      gateway.QuestionType `json:"question_type"`
	IsComplete        bool                 `json:"is_complete"`
	QuestionCount     int                  `json:"question_count"`
	MaxQuestions      int                  `json:"max_questions"`
	CompletionPercent int                  `json:"completion_percent"`
	Message           string               `json:"message"`
	Retries           int                  `json:"retries,omitempty"`
}

// ResumeState is the reconstructed position of a visit.
type ResumeState struct {
	Visit             *Visit       `json:"visit"`
	Turns             []IntakeTurn `json:"turns"`
	QuestionCount     int          `json:"question_count"`
	CompletionPercent int          `json:"completion_percent"`
	PendingSymptoms   []string     `json:"pending_symptoms,omitempty"`
}

// CreateVisit opens a fresh visit for the patient and retires any previously
// active one. Historical intake turns of retired visits are kept.
func (s *Service) CreateVisit(ctx context.Context, patientID uuid.UUID) (*Visit, error) {
	if patientID == uuid.Nil {
		return nil, &ValidationError{Field: "patient_id", Reason: "required"}
	}
	v := &Visit{
		PatientID:    patientID,
		Stage:        StageRegistration,
		Active:       true,
		QuestionType: gateway.QuestionTypeText,
		MaxQuestions: progress.DefaultMaxQuestions,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}
	if err := s.repo.DeactivateOthers(ctx, patientID, v.ID); err != nil {
		return nil, err
	}
	// Old resume hints for this patient are now for a retired visit.
	_ = s.cache.Clear(ctx, resumePrefix(patientID))
	s.metrics.StageTransitions.WithLabelValues(string(StageRegistration)).Inc()
	return v, nil
}

// GetVisit loads a visit.
func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.repo.GetByID(ctx, id)
}

// ListVisits lists a patient's visits, newest first.
func (s *Service) ListVisits(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// StartIntake begins the adaptive interview. It requires the registration
// stage, asks the gateway for the first question, and only on success moves
// the visit to intake-in-progress.
func (s *Service) StartIntake(ctx context.Context, visitID uuid.UUID, initialSymptoms []string) (*SubmitResult, error) {
	sess := s.session(visitID)
	token, ok := sess.reserve(StageIntakeInProgress)
	if !ok {
		s.metrics.GenerationConflict.Inc()
		return nil, &GenerationConflictError{VisitID: visitID, Stage: StageIntakeInProgress}
	}
	defer sess.release(StageIntakeInProgress, token)

	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.Stage != StageRegistration {
		return nil, &StaleStateError{Reason: fmt.Sprintf("intake can only start from registration, visit is at %s", v.Stage)}
	}

	symptoms := trimAll(initialSymptoms)
	var res *gateway.IntakeResult
	err = s.withRetry(ctx, sess, "start_intake", func(ctx context.Context) error {
		var callErr error
		res, callErr = s.gw.StartIntake(ctx, gateway.IntakeRequest{
			SessionID:       visitID.String(),
			InitialSymptoms: symptoms,
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if !sess.valid(StageIntakeInProgress, token) {
		return nil, &StaleStateError{Reason: "visit was abandoned while the first question was generating"}
	}
	if res.Complete() {
		return nil, fmt.Errorf("generation service returned no first question")
	}

	q := res.Question()
	v.PendingQuestion = &q
	v.QuestionType = questionType(res)
	if res.MaxQuestions != nil {
		sess.est.ObserveMax(*res.MaxQuestions)
	}
	sess.est.ObserveMax(v.MaxQuestions)
	v.ObserveMaxQuestions(sess.est.EffectiveMax())
	if len(symptoms) > 0 {
		v.Symptom = strings.Join(symptoms, ", ")
	}
	if err := v.AdvanceTo(StageIntakeInProgress); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	s.writeResumeHints(ctx, v, symptoms)
	s.metrics.StageTransitions.WithLabelValues(string(StageIntakeInProgress)).Inc()

	return s.submitResult(sess, v, res, 0), nil
}

// SubmitAnswer records the answer to the pending question and fetches the
// next one. A completion sentinel from the gateway finishes intake. No local
// state changes unless the gateway call succeeded.
func (s *Service) SubmitAnswer(ctx context.Context, visitID uuid.UUID, answer string) (*SubmitResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, &ValidationError{Field: "answer", Reason: "must not be empty"}
	}

	sess := s.session(visitID)
	token, ok := sess.reserve(StageIntakeInProgress)
	if !ok {
		s.metrics.GenerationConflict.Inc()
		return nil, &GenerationConflictError{VisitID: visitID, Stage: StageIntakeInProgress}
	}
	defer sess.release(StageIntakeInProgress, token)

	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.Stage != StageIntakeInProgress {
		return nil, &StaleStateError{Reason: fmt.Sprintf("intake is not in progress, visit is at %s", v.Stage)}
	}
	if v.PendingQuestion == nil || strings.TrimSpace(*v.PendingQuestion) == "" {
		return nil, &StaleStateError{Reason: "no pending question to answer"}
	}
	pending := *v.PendingQuestion

	history, err := s.loadHistory(ctx, visitID)
	if err != nil {
		return nil, err
	}

	var res *gateway.IntakeResult
	err = s.withRetry(ctx, sess, "next_question", func(ctx context.Context) error {
		var callErr error
		res, callErr = s.gw.NextQuestion(ctx, gateway.IntakeRequest{
			SessionID:       visitID.String(),
			LastQuestion:    pending,
			LastAnswer:      answer,
			InitialSymptoms: splitSymptoms(v.Symptom),
			AskedQuestions:  append(history.Questions(), pending),
			PreviousAnswers: append(history.Answers(), answer),
			QuestionCount:   history.Len() + 1,
			MaxQuestions:    v.MaxQuestions,
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if !sess.valid(StageIntakeInProgress, token) {
		return nil, &StaleStateError{Reason: "visit was abandoned while the next question was generating"}
	}

	turn := history.Append(pending, answer, time.Now().UTC())
	if err := s.repo.AppendTurn(ctx, &turn); err != nil {
		return nil, err
	}
	s.metrics.AnswersSubmitted.Inc()

	if v.Symptom == "" && turn.Index == 0 {
		v.Symptom = answer
	}
	if res.MaxQuestions != nil {
		sess.est.ObserveMax(*res.MaxQuestions)
	}
	sess.est.ObserveMax(v.MaxQuestions)
	v.ObserveMaxQuestions(sess.est.EffectiveMax())
	if res.CompletionPercent != nil {
		sess.est.SetAuthoritative(*res.CompletionPercent)
	} else {
		sess.est.ClearAuthoritative()
	}

	if res.Complete() {
		v.PendingQuestion = nil
		v.IntakeSummary = res.Summary
		if err := v.AdvanceTo(StageIntakeComplete); err != nil {
			return nil, err
		}
		_ = s.cache.Clear(ctx, resumePrefix(v.PatientID))
		s.metrics.IntakeCompleted.Inc()
		s.metrics.StageTransitions.WithLabelValues(string(StageIntakeComplete)).Inc()
	} else {
		q := res.Question()
		v.PendingQuestion = &q
		v.QuestionType = questionType(res)
		s.writeResumeHints(ctx, v, nil)
	}

	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	return s.submitResult(sess, v, res, history.Len()), nil
}

// EditAnswer replaces the answer of an already-recorded turn. The edit is
// persisted through the gateway first; local state mutates only on success,
// and downstream turns are never replayed or invalidated.
func (s *Service) EditAnswer(ctx context.Context, visitID uuid.UUID, turnIndex int, newAnswer string) (*IntakeTurn, error) {
	newAnswer = strings.TrimSpace(newAnswer)
	if newAnswer == "" {
		return nil, &ValidationError{Field: "new_answer", Reason: "must not be empty"}
	}

	// Edits serialize with answer submission on the same visit.
	sess := s.session(visitID)
	token, ok := sess.reserve(StageIntakeInProgress)
	if !ok {
		s.metrics.GenerationConflict.Inc()
		return nil, &GenerationConflictError{VisitID: visitID, Stage: StageIntakeInProgress}
	}
	defer sess.release(StageIntakeInProgress, token)

	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	history, err := s.loadHistory(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if _, found := history.Turn(turnIndex); !found {
		return nil, &StaleStateError{
			Reason: fmt.Sprintf("turn index %d out of range (history has %d turns)", turnIndex, history.Len()),
		}
	}

	err = s.withRetry(ctx, sess, "edit_answer", func(ctx context.Context) error {
		// 1-based on the wire.
		return s.gw.EditAnswer(ctx, v.PatientID.String(), visitID.String(), turnIndex+1, newAnswer)
	})
	if err != nil {
		return nil, err
	}
	if !sess.valid(StageIntakeInProgress, token) {
		return nil, &StaleStateError{Reason: "visit was abandoned while the edit was persisting"}
	}

	turn, err := history.ReplaceAnswer(turnIndex, newAnswer)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTurnAnswer(ctx, visitID, turnIndex, newAnswer); err != nil {
		return nil, err
	}
	s.metrics.AnswerEdits.Inc()
	return &turn, nil
}

// GenerateArtifact produces a stage artifact. Already-generated artifacts
// are returned as-is without another gateway call, and only a successful
// generation advances the stage.
func (s *Service) GenerateArtifact(ctx context.Context, visitID uuid.UUID, kind ArtifactKind) (*Visit, error) {
	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}

	var target Stage
	switch kind {
	case ArtifactPreVisit:
		if v.PreVisit != nil {
			return v, nil
		}
		if v.Stage != StageIntakeComplete {
			return nil, &StaleStateError{Reason: fmt.Sprintf("pre-visit summary requires completed intake, visit is at %s", v.Stage)}
		}
		target = StagePreVisitReady
	case ArtifactSOAP:
		if v.SOAP != nil {
			return v, nil
		}
		if v.Stage != StageVitalsComplete && v.Stage != StageSOAPPending {
			return nil, &StaleStateError{Reason: fmt.Sprintf("soap note requires completed vitals, visit is at %s", v.Stage)}
		}
		target = StageSOAPComplete
	case ArtifactPostVisit:
		if v.PostVisit != nil {
			return v, nil
		}
		if v.Stage != StageSOAPComplete {
			return nil, &StaleStateError{Reason: fmt.Sprintf("post-visit summary requires a soap note, visit is at %s", v.Stage)}
		}
		target = StagePostVisitDone
	default:
		return nil, &ValidationError{Field: "artifact", Reason: fmt.Sprintf("unknown kind %q", kind)}
	}

	sess := s.session(visitID)
	token, ok := sess.reserve(target)
	if !ok {
		s.metrics.GenerationConflict.Inc()
		return nil, &GenerationConflictError{VisitID: visitID, Stage: target}
	}
	defer sess.release(target, token)

	history, err := s.loadHistory(ctx, visitID)
	if err != nil {
		return nil, err
	}
	vc := s.visitContext(v, history)

	err = s.withRetry(ctx, sess, string(kind), func(ctx context.Context) error {
		switch kind {
		case ArtifactPreVisit:
			artifact, callErr := s.gw.GeneratePreVisit(ctx, vc)
			if callErr != nil {
				return callErr
			}
			v.PreVisit = artifact
		case ArtifactSOAP:
			artifact, callErr := s.gw.GenerateSOAP(ctx, vc)
			if callErr != nil {
				return callErr
			}
			v.SOAP = artifact
		case ArtifactPostVisit:
			artifact, callErr := s.gw.GeneratePostVisit(ctx, vc)
			if callErr != nil {
				return callErr
			}
			v.PostVisit = artifact
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !sess.valid(target, token) {
		return nil, &StaleStateError{Reason: "visit was abandoned while the artifact was generating"}
	}

	if err := v.AdvanceTo(target); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	if target == StagePostVisitDone {
		s.dropSession(visitID)
	}
	s.metrics.StageTransitions.WithLabelValues(string(target)).Inc()
	s.logger.Info().
		Str("visit_id", visitID.String()).
		Str("artifact", string(kind)).
		Str("stage", string(target)).
		Msg("stage artifact generated")
	return v, nil
}

// BeginVitals marks the vitals form as opened.
func (s *Service) BeginVitals(ctx context.Context, visitID uuid.UUID) (*Visit, error) {
	return s.markStage(ctx, visitID, StagePreVisitReady, StageVitalsPending)
}

// RecordVitals stores the captured vitals and completes the vitals stage.
func (s *Service) RecordVitals(ctx context.Context, visitID uuid.UUID, vitals Vitals) (*Visit, error) {
	if vitals.Summary() == "" {
		return nil, &ValidationError{Field: "vitals", Reason: "at least one measurement is required"}
	}
	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.Stage != StagePreVisitReady && v.Stage != StageVitalsPending {
		return nil, &StaleStateError{Reason: fmt.Sprintf("vitals require the pre-visit summary stage, visit is at %s", v.Stage)}
	}
	if vitals.RecordedAt.IsZero() {
		vitals.RecordedAt = time.Now().UTC()
	}
	v.Vitals = &vitals
	v.Stage = StageVitalsComplete
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	s.metrics.StageTransitions.WithLabelValues(string(StageVitalsComplete)).Inc()
	return v, nil
}

// BeginSOAP marks SOAP generation as requested by the clinician.
func (s *Service) BeginSOAP(ctx context.Context, visitID uuid.UUID) (*Visit, error) {
	return s.markStage(ctx, visitID, StageVitalsComplete, StageSOAPPending)
}

func (s *Service) markStage(ctx context.Context, visitID uuid.UUID, from, to Stage) (*Visit, error) {
	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.Stage != from {
		return nil, &StaleStateError{Reason: fmt.Sprintf("expected stage %s, visit is at %s", from, v.Stage)}
	}
	if err := v.AdvanceTo(to); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	s.metrics.StageTransitions.WithLabelValues(string(to)).Inc()
	return v, nil
}

// Resume reconstructs a visit's position. Cached hints make the reply
// instantaneous but the repository remains the source of truth; missing
// cache entries are tolerated.
func (s *Service) Resume(ctx context.Context, visitID, patientID uuid.UUID) (*ResumeState, error) {
	if visitID == uuid.Nil || patientID == uuid.Nil {
		return nil, &ValidationError{Field: "visit_id/patient_id", Reason: "required"}
	}

	hintQuestion, _, _ := s.cache.Get(ctx, resumeKey(patientID, visitID, "pending_question"))
	hintMax, _, _ := s.cache.Get(ctx, resumeKey(patientID, visitID, "max_questions"))
	hintSymptoms, _, _ := s.cache.Get(ctx, resumeKey(patientID, visitID, "symptoms"))

	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.PatientID != patientID {
		return nil, ErrNotFound
	}

	turns, err := s.repo.ListTurns(ctx, visitID)
	if err != nil {
		return nil, err
	}

	// The repository wins; hints only fill gaps left by a partial write.
	if v.Stage == StageIntakeInProgress && v.PendingQuestion == nil && hintQuestion != "" {
		v.PendingQuestion = &hintQuestion
	}
	sess := s.session(visitID)
	sess.est.ObserveMax(v.MaxQuestions)
	if n := atoi(hintMax); n > 0 {
		sess.est.ObserveMax(n)
	}
	v.ObserveMaxQuestions(sess.est.EffectiveMax())

	percent := sess.est.Percent(len(turns))
	if v.Stage.AtLeast(StageIntakeComplete) {
		percent = 100
	}

	return &ResumeState{
		Visit:             v,
		Turns:             turns,
		QuestionCount:     len(turns),
		CompletionPercent: percent,
		PendingSymptoms:   splitSymptoms(hintSymptoms),
	}, nil
}

// Abandon invalidates any in-flight generation for the visit so a late
// response is discarded instead of applied, and evicts the visit's session.
func (s *Service) Abandon(visitID uuid.UUID) {
	s.mu.Lock()
	sess, ok := s.sessions[visitID]
	delete(s.sessions, visitID)
	s.mu.Unlock()
	if ok {
		sess.abandon()
	}
}

// withRetry runs fn with bounded retries on connectivity failures. The
// returned ConnectivityError carries the attempt count for user feedback.
func (s *Service) withRetry(ctx context.Context, sess *session, op string, fn func(ctx context.Context) error) error {
	backoff := s.retry.Backoff
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !gateway.IsConnectivity(err) {
			return err
		}
		sess.bumpRetry()
		if attempt >= s.retry.MaxAttempts {
			var ce *gateway.ConnectivityError
			if errors.As(err, &ce) {
				ce.Attempts = attempt
			}
			s.logger.Warn().Err(err).Str("operation", op).Int("attempts", attempt).Msg("gateway unreachable")
			return err
		}
		s.metrics.GatewayRetries.Inc()
		select {
		case <-ctx.Done():
			return &gateway.ConnectivityError{Op: op, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (s *Service) loadHistory(ctx context.Context, visitID uuid.UUID) (*History, error) {
	turns, err := s.repo.ListTurns(ctx, visitID)
	if err != nil {
		return nil, err
	}
	return NewHistory(visitID, turns)
}

func (s *Service) visitContext(v *Visit, history *History) gateway.VisitContext {
	vc := gateway.VisitContext{
		PatientID:     v.PatientID.String(),
		VisitID:       v.ID.String(),
		Symptom:       v.Symptom,
		IntakeSummary: v.IntakeSummary,
		PreVisit:      v.PreVisit,
		SOAP:          v.SOAP,
	}
	for _, t := range history.Turns() {
		vc.Turns = append(vc.Turns, gateway.QA{Question: t.Question, Answer: t.Answer})
	}
	if v.Vitals != nil {
		vc.VitalsSummary = v.Vitals.Summary()
	}
	return vc
}

func (s *Service) submitResult(sess *session, v *Visit, res *gateway.IntakeResult, answered int) *SubmitResult {
	complete := res.Complete()
	percent := sess.est.Percent(answered)
	message := fmt.Sprintf("Question %d of %d", answered+1, v.MaxQuestions)
	if complete {
		percent = 100
		message = "Intake completed. Ready for the pre-visit summary."
	}
	return &SubmitResult{
		NextQuestion:      v.PendingQuestion,
		QuestionType:      v.QuestionType,
		IsComplete:        complete,
		QuestionCount:     answered,
		MaxQuestions:      v.MaxQuestions,
		CompletionPercent: percent,
		Message:           message,
		Retries:           sess.retries(),
	}
}

func (s *Service) writeResumeHints(ctx context.Context, v *Visit, symptoms []string) {
	if v.PendingQuestion != nil {
		_ = s.cache.Set(ctx, resumeKey(v.PatientID, v.ID, "pending_question"), *v.PendingQuestion)
	}
	_ = s.cache.Set(ctx, resumeKey(v.PatientID, v.ID, "max_questions"), fmt.Sprintf("%d", v.MaxQuestions))
	if len(symptoms) > 0 {
		_ = s.cache.Set(ctx, resumeKey(v.PatientID, v.ID, "symptoms"), strings.Join(symptoms, ", "))
	}
}

func resumePrefix(patientID uuid.UUID) string {
	return "resume:" + patientID.String() + ":"
}

func resumeKey(patientID, visitID uuid.UUID, field string) string {
	return resumePrefix(patientID) + visitID.String() + ":" + field
}

func questionType(res *gateway.IntakeResult) gateway.QuestionType {
	if res.Type == gateway.QuestionTypeYesNo {
		return gateway.QuestionTypeYesNo
	}
	return gateway.QuestionTypeText
}

func splitSymptoms(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return trimAll(strings.Split(s, ","))
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
