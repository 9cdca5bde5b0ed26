package visit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicai/visitflow/internal/platform/cache"
	"github.com/clinicai/visitflow/internal/platform/gateway"
)

// -- mocks --

type mockRepo struct {
	mu     sync.Mutex
	visits map[uuid.UUID]*Visit
	turns  map[uuid.UUID][]IntakeTurn
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		visits: make(map[uuid.UUID]*Visit),
		turns:  make(map[uuid.UUID][]IntakeTurn),
	}
}

func (m *mockRepo) Create(_ context.Context, v *Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = time.Now().UTC()
	v.UpdatedAt = v.CreatedAt
	cp := *v
	m.visits[v.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visits[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, v *Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.visits[v.ID]; !ok {
		return ErrNotFound
	}
	v.UpdatedAt = time.Now().UTC()
	cp := *v
	m.visits[v.ID] = &cp
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Visit
	for _, v := range m.visits {
		if v.PatientID == patientID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) DeactivateOthers(_ context.Context, patientID, keep uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.visits {
		if v.PatientID == patientID && v.ID != keep {
			v.Active = false
		}
	}
	return nil
}

func (m *mockRepo) ListTurns(_ context.Context, visitID uuid.UUID) ([]IntakeTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]IntakeTurn(nil), m.turns[visitID]...), nil
}

func (m *mockRepo) AppendTurn(_ context.Context, turn *IntakeTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[turn.VisitID] = append(m.turns[turn.VisitID], *turn)
	return nil
}

func (m *mockRepo) UpdateTurnAnswer(_ context.Context, visitID uuid.UUID, index int, newAnswer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := m.turns[visitID]
	if index < 0 || index >= len(turns) {
		return &StaleStateError{Reason: "no such turn"}
	}
	turns[index].Answer = newAnswer
	return nil
}

type mockGateway struct {
	mu             sync.Mutex
	startCalls     int
	nextCalls      int
	editCalls      int
	previsitCalls  int
	soapCalls      int
	postvisitCalls int
	lastEditIndex  int

	startFn     func(gateway.IntakeRequest) (*gateway.IntakeResult, error)
	nextFn      func(gateway.IntakeRequest) (*gateway.IntakeResult, error)
	editFn      func(questionNumber int) error
	previsitFn  func() (*gateway.PreVisitSummary, error)
	soapFn      func() (*gateway.SOAPNote, error)
	postvisitFn func() (*gateway.PostVisitSummary, error)
}

func (m *mockGateway) StartIntake(_ context.Context, req gateway.IntakeRequest) (*gateway.IntakeResult, error) {
	m.mu.Lock()
	m.startCalls++
	fn := m.startFn
	m.mu.Unlock()
	if fn == nil {
		return questionResult("What brings you in today?"), nil
	}
	return fn(req)
}

func (m *mockGateway) NextQuestion(_ context.Context, req gateway.IntakeRequest) (*gateway.IntakeResult, error) {
	m.mu.Lock()
	m.nextCalls++
	fn := m.nextFn
	m.mu.Unlock()
	if fn == nil {
		return questionResult("And how long has this been going on?"), nil
	}
	return fn(req)
}

func (m *mockGateway) EditAnswer(_ context.Context, _, _ string, questionNumber int, _ string) error {
	m.mu.Lock()
	m.editCalls++
	m.lastEditIndex = questionNumber
	fn := m.editFn
	m.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(questionNumber)
}

func (m *mockGateway) GeneratePreVisit(_ context.Context, _ gateway.VisitContext) (*gateway.PreVisitSummary, error) {
	m.mu.Lock()
	m.previsitCalls++
	fn := m.previsitFn
	m.mu.Unlock()
	if fn == nil {
		return &gateway.PreVisitSummary{Summary: "summary"}, nil
	}
	return fn()
}

func (m *mockGateway) GenerateSOAP(_ context.Context, _ gateway.VisitContext) (*gateway.SOAPNote, error) {
	m.mu.Lock()
	m.soapCalls++
	fn := m.soapFn
	m.mu.Unlock()
	if fn == nil {
		return &gateway.SOAPNote{Subjective: "s", Objective: "o", Assessment: "a", Plan: "p"}, nil
	}
	return fn()
}

func (m *mockGateway) GeneratePostVisit(_ context.Context, _ gateway.VisitContext) (*gateway.PostVisitSummary, error) {
	m.mu.Lock()
	m.postvisitCalls++
	fn := m.postvisitFn
	m.mu.Unlock()
	if fn == nil {
		return &gateway.PostVisitSummary{ChiefComplaint: "cc"}, nil
	}
	return fn()
}

func questionResult(q string) *gateway.IntakeResult {
	return &gateway.IntakeResult{NextQuestion: &q, Type: gateway.QuestionTypeText}
}

func completeResult(summary string) *gateway.IntakeResult {
	marker := gateway.CompletionMarker
	return &gateway.IntakeResult{NextQuestion: &marker, Summary: summary}
}

// -- harness --

func newTestService(t *testing.T, gw *mockGateway) (*Service, *mockRepo) {
	t.Helper()
	repo := newMockRepo()
	svc := NewService(repo, gw, cache.NewMemoryStore(), zerolog.Nop(), nil, RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond})
	return svc, repo
}

func startedVisit(t *testing.T, svc *Service, repo *mockRepo) *Visit {
	t.Helper()
	v, err := svc.CreateVisit(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("create visit: %v", err)
	}
	if _, err := svc.StartIntake(context.Background(), v.ID, []string{"headache"}); err != nil {
		t.Fatalf("start intake: %v", err)
	}
	got, err := repo.GetByID(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	return got
}

func visitAtStage(t *testing.T, svc *Service, repo *mockRepo, stage Stage) *Visit {
	t.Helper()
	v := startedVisit(t, svc, repo)
	v.Stage = stage
	if err := repo.Update(context.Background(), v); err != nil {
		t.Fatalf("force stage: %v", err)
	}
	return v
}

// -- tests --

func TestCreateVisitDeactivatesPrevious(t *testing.T) {
	svc, repo := newTestService(t, &mockGateway{})
	patientID := uuid.New()

	first, err := svc.CreateVisit(context.Background(), patientID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.CreateVisit(context.Background(), patientID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	old, _ := repo.GetByID(context.Background(), first.ID)
	if old.Active {
		t.Error("previous visit still active")
	}
	cur, _ := repo.GetByID(context.Background(), second.ID)
	if !cur.Active || cur.Stage != StageRegistration {
		t.Errorf("new visit = %+v", cur)
	}
}

func TestStartIntakeStoresFirstQuestion(t *testing.T) {
	gw := &mockGateway{}
	svc, repo := newTestService(t, gw)
	v, _ := svc.CreateVisit(context.Background(), uuid.New())

	res, err := svc.StartIntake(context.Background(), v.ID, []string{"headache", " dizziness "})
	if err != nil {
		t.Fatalf("start intake: %v", err)
	}
	if res.IsComplete {
		t.Error("first question marked complete")
	}
	if res.NextQuestion == nil || *res.NextQuestion == "" {
		t.Fatal("no first question")
	}

	got, _ := repo.GetByID(context.Background(), v.ID)
	if got.Stage != StageIntakeInProgress {
		t.Fatalf("stage = %s", got.Stage)
	}
	if got.PendingQuestion == nil {
		t.Fatal("pending question not stored")
	}
	if got.Symptom != "headache, dizziness" {
		t.Errorf("symptom = %q", got.Symptom)
	}
}

func TestStartIntakeRequiresRegistration(t *testing.T) {
	svc, repo := newTestService(t, &mockGateway{})
	v := startedVisit(t, svc, repo)

	if _, err := svc.StartIntake(context.Background(), v.ID, nil); !IsStaleState(err) {
		t.Fatalf("expected stale state, got %v", err)
	}
}

func TestSubmitAnswerAppendsTurnAndAdvancesQuestion(t *testing.T) {
	gw := &mockGateway{}
	svc, repo := newTestService(t, gw)
	v := startedVisit(t, svc, repo)
	firstQuestion := *v.PendingQuestion

	res, err := svc.SubmitAnswer(context.Background(), v.ID, "since tuesday")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.IsComplete {
		t.Fatal("unexpected completion")
	}
	if res.QuestionCount != 1 {
		t.Errorf("question count = %d", res.QuestionCount)
	}

	turns, _ := repo.ListTurns(context.Background(), v.ID)
	if len(turns) != 1 {
		t.Fatalf("turns = %d", len(turns))
	}
	if turns[0].Question != firstQuestion || turns[0].Answer != "since tuesday" {
		t.Errorf("turn = %+v", turns[0])
	}

	got, _ := repo.GetByID(context.Background(), v.ID)
	if got.PendingQuestion == nil || *got.PendingQuestion == firstQuestion {
		t.Error("pending question not replaced")
	}
}

func TestSubmitAnswerCompletionSentinels(t *testing.T) {
	empty := ""
	blank := "   "
	marker := gateway.CompletionMarker
	cases := []struct {
		name string
		next *string
	}{
		{"nil", nil},
		{"empty", &empty},
		{"whitespace", &blank},
		{"marker", &marker},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &mockGateway{
				nextFn: func(gateway.IntakeRequest) (*gateway.IntakeResult, error) {
					return &gateway.IntakeResult{NextQuestion: tc.next, Summary: "intake summary"}, nil
				},
			}
			svc, repo := newTestService(t, gw)
			v := startedVisit(t, svc, repo)

			res, err := svc.SubmitAnswer(context.Background(), v.ID, "no other symptoms")
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			if !res.IsComplete {
				t.Fatal("sentinel not treated as completion")
			}
			if res.CompletionPercent != 100 {
				t.Errorf("percent = %d", res.CompletionPercent)
			}

			got, _ := repo.GetByID(context.Background(), v.ID)
			if got.Stage != StageIntakeComplete {
				t.Errorf("stage = %s", got.Stage)
			}
			if got.PendingQuestion != nil {
				t.Error("pending question not cleared")
			}
			if got.IntakeSummary != "intake summary" {
				t.Errorf("summary = %q", got.IntakeSummary)
			}
			// The final answer is still recorded.
			turns, _ := repo.ListTurns(context.Background(), v.ID)
			if len(turns) != 1 {
				t.Errorf("turns = %d", len(turns))
			}
		})
	}
}

func TestSubmitAnswerWidensMaxQuestionsMonotonically(t *testing.T) {
	wider, narrower := 15, 4
	responses := []*gateway.IntakeResult{
		{NextQuestion: strPtr("q2"), MaxQuestions: &wider},
		{NextQuestion: strPtr("q3"), MaxQuestions: &narrower},
	}
	i := 0
	gw := &mockGateway{
		nextFn: func(gateway.IntakeRequest) (*gateway.IntakeResult, error) {
			res := responses[i]
			i++
			return res, nil
		},
	}
	svc, repo := newTestService(t, gw)
	v := startedVisit(t, svc, repo)

	res, err := svc.SubmitAnswer(context.Background(), v.ID, "a1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.MaxQuestions != 15 {
		t.Fatalf("max after widen = %d", res.MaxQuestions)
	}

	res, err = svc.SubmitAnswer(context.Background(), v.ID, "a2")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.MaxQuestions != 15 {
		t.Fatalf("max shrank to %d", res.MaxQuestions)
	}
	got, _ := repo.GetByID(context.Background(), v.ID)
	if got.MaxQuestions != 15 {
		t.Fatalf("persisted max = %d", got.MaxQuestions)
	}
}

func TestSubmitAnswerRejectsEmpty(t *testing.T) {
	svc, repo := newTestService(t, &mockGateway{})
	v := startedVisit(t, svc, repo)
	if _, err := svc.SubmitAnswer(context.Background(), v.ID, "   "); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitAnswerConnectivityLeavesStateUntouched(t *testing.T) {
	gw := &mockGateway{
		nextFn: func(gateway.IntakeRequest) (*gateway.IntakeResult, error) {
			return nil, &gateway.ConnectivityError{Op: "next_question", Err: errors.New("dial refused")}
		},
	}
	svc, repo := newTestService(t, gw)
	v := startedVisit(t, svc, repo)

	_, err := svc.SubmitAnswer(context.Background(), v.ID, "answer")
	if !gateway.IsConnectivity(err) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
	var ce *gateway.ConnectivityError
	if errors.As(err, &ce) && ce.Attempts != 3 {
		t.Errorf("attempts = %d", ce.Attempts)
	}
	if gw.nextCalls != 3 {
		t.Errorf("gateway calls = %d", gw.nextCalls)
	}

	got, _ := repo.GetByID(context.Background(), v.ID)
	if got.Stage != StageIntakeInProgress || got.PendingQuestion == nil {
		t.Error("visit state mutated on failure")
	}
	turns, _ := repo.ListTurns(context.Background(), v.ID)
	if len(turns) != 0 {
		t.Error("turn recorded despite failure")
	}
}

func TestEditAnswerSendsOneBasedIndex(t *testing.T) {
	gw := &mockGateway{}
	svc, repo := newTestService(t, gw)
	v := startedVisit(t, svc, repo)
	if _, err := svc.SubmitAnswer(context.Background(), v.ID, "original"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	turn, err := svc.EditAnswer(context.Background(), v.ID, 0, "revised")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if gw.lastEditIndex != 1 {
		t.Errorf("wire index = %d", gw.lastEditIndex)
	}
	if turn.Answer != "revised" {
		t.Errorf("turn = %+v", turn)
	}
	turns, _ := repo.ListTurns(context.Background(), v.ID)
	if turns[0].Answer != "revised" {
		t.Error("edit not persisted")
	}
}

func TestEditAnswerFailureKeepsOriginal(t *testing.T) {
	gw := &mockGateway{
		editFn: func(int) error {
			return &gateway.ConnectivityError{Op: "edit_answer", Err: errors.New("unreachable")}
		},
	}
	svc, repo := newTestService(t, gw)
	v := startedVisit(t, svc, repo)
	if _, err := svc.SubmitAnswer(context.Background(), v.ID, "original"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.EditAnswer(context.Background(), v.ID, 0, "revised"); !gateway.IsConnectivity(err) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
	turns, _ := repo.ListTurns(context.Background(), v.ID)
	if turns[0].Answer != "original" {
		t.Error("local answer changed despite remote failure")
	}
}

func TestEditAnswerOutOfRangeSkipsGateway(t *testing.T) {
	gw := &mockGateway{}
	svc, repo := newTestService(t, gw)
	v := startedVisit(t, svc, repo)

	if _, err := svc.EditAnswer(context.Background(), v.ID, 3, "revised"); !IsStaleState(err) {
		t.Fatalf("expected stale state, got %v", err)
	}
	if gw.editCalls != 0 {
		t.Error("gateway called for out of range edit")
	}
}

func TestGenerateArtifactIdempotent(t *testing.T) {
	gw := &mockGateway{}
	svc, repo := newTestService(t, gw)
	v := visitAtStage(t, svc, repo, StageIntakeComplete)

	first, err := svc.GenerateArtifact(context.Background(), v.ID, ArtifactPreVisit)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first.Stage != StagePreVisitReady || first.PreVisit == nil {
		t.Fatalf("after generate: stage=%s previsit=%v", first.Stage, first.PreVisit)
	}

	second, err := svc.GenerateArtifact(context.Background(), v.ID, ArtifactPreVisit)
	if err != nil {
		t.Fatalf("repeat generate: %v", err)
	}
	if second.PreVisit == nil {
		t.Fatal("cached artifact missing")
	}
	if gw.previsitCalls != 1 {
		t.Errorf("gateway calls = %d", gw.previsitCalls)
	}
}

func TestGenerateArtifactStageGuards(t *testing.T) {
	svc, repo := newTestService(t, &mockGateway{})
	v := startedVisit(t, svc, repo)

	for _, kind := range []ArtifactKind{ArtifactPreVisit, ArtifactSOAP, ArtifactPostVisit} {
		if _, err := svc.GenerateArtifact(context.Background(), v.ID, kind); !IsStaleState(err) {
			t.Errorf("%s from intake stage: expected stale state, got %v", kind, err)
		}
	}
}

func TestGenerateArtifactConnectivityKeepsStage(t *testing.T) {
	gw := &mockGateway{
		previsitFn: func() (*gateway.PreVisitSummary, error) {
			return nil, &gateway.ConnectivityError{Op: "previsit", Err: errors.New("timeout")}
		},
	}
	svc, repo := newTestService(t, gw)
	v := visitAtStage(t, svc, repo, StageIntakeComplete)

	if _, err := svc.GenerateArtifact(context.Background(), v.ID, ArtifactPreVisit); !gateway.IsConnectivity(err) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
	got, _ := repo.GetByID(context.Background(), v.ID)
	if got.Stage != StageIntakeComplete || got.PreVisit != nil {
		t.Error("stage advanced despite failure")
	}
}

func TestGenerateArtifactConcurrentDuplicateRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gw := &mockGateway{
		previsitFn: func() (*gateway.PreVisitSummary, error) {
			close(started)
			<-release
			return &gateway.PreVisitSummary{Summary: "summary"}, nil
		},
	}
	svc, repo := newTestService(t, gw)
	v := visitAtStage(t, svc, repo, StageIntakeComplete)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.GenerateArtifact(context.Background(), v.ID, ArtifactPreVisit)
		errCh <- err
	}()
	<-started

	_, dupErr := svc.GenerateArtifact(context.Background(), v.ID, ArtifactPreVisit)
	if !IsGenerationConflict(dupErr) {
		t.Fatalf("expected generation conflict, got %v", dupErr)
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("first generation failed: %v", err)
	}
	if gw.previsitCalls != 1 {
		t.Errorf("gateway calls = %d", gw.previsitCalls)
	}
	got, _ := repo.GetByID(context.Background(), v.ID)
	if got.Stage != StagePreVisitReady {
		t.Errorf("stage = %s", got.Stage)
	}
}

func TestSubmitAnswerConcurrentDuplicateRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gw := &mockGateway{
		nextFn: func(gateway.IntakeRequest) (*gateway.IntakeResult, error) {
			close(started)
			<-release
			return questionResult("And how long has this been going on?"), nil
		},
	}
	svc, repo := newTestService(t, gw)
	v := startedVisit(t, svc, repo)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.SubmitAnswer(context.Background(), v.ID, "three days")
		errCh <- err
	}()
	<-started

	_, dupErr := svc.SubmitAnswer(context.Background(), v.ID, "a week")
	if !IsGenerationConflict(dupErr) {
		t.Fatalf("expected generation conflict, got %v", dupErr)
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if gw.nextCalls != 1 {
		t.Errorf("gateway calls = %d", gw.nextCalls)
	}
	turns, _ := repo.ListTurns(context.Background(), v.ID)
	if len(turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(turns))
	}
	if turns[0].Answer != "three days" {
		t.Errorf("recorded answer = %q", turns[0].Answer)
	}
}

func hasSession(svc *Service, id uuid.UUID) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	_, ok := svc.sessions[id]
	return ok
}

func TestSessionEvictedOnTerminalStage(t *testing.T) {
	svc, repo := newTestService(t, &mockGateway{})
	v := visitAtStage(t, svc, repo, StageSOAPComplete)

	if _, err := svc.GenerateArtifact(context.Background(), v.ID, ArtifactPostVisit); err != nil {
		t.Fatalf("post-visit artifact: %v", err)
	}
	if hasSession(svc, v.ID) {
		t.Error("session still held after the visit completed")
	}
}

func TestSessionEvictedOnAbandon(t *testing.T) {
	svc, repo := newTestService(t, &mockGateway{})
	v := startedVisit(t, svc, repo)

	svc.Abandon(v.ID)
	if hasSession(svc, v.ID) {
		t.Error("session still held after abandon")
	}
}

func TestAbandonDiscardsLateResponse(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gw := &mockGateway{
		soapFn: func() (*gateway.SOAPNote, error) {
			close(started)
			<-release
			return &gateway.SOAPNote{Subjective: "s"}, nil
		},
	}
	svc, repo := newTestService(t, gw)
	v := visitAtStage(t, svc, repo, StageVitalsComplete)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.GenerateArtifact(context.Background(), v.ID, ArtifactSOAP)
		errCh <- err
	}()
	<-started

	svc.Abandon(v.ID)
	close(release)

	if err := <-errCh; !IsStaleState(err) {
		t.Fatalf("expected stale state for late response, got %v", err)
	}
	got, _ := repo.GetByID(context.Background(), v.ID)
	if got.Stage != StageVitalsComplete || got.SOAP != nil {
		t.Error("late response was applied")
	}
}

func TestVitalsFlow(t *testing.T) {
	svc, repo := newTestService(t, &mockGateway{})
	v := visitAtStage(t, svc, repo, StagePreVisitReady)

	if _, err := svc.BeginVitals(context.Background(), v.ID); err != nil {
		t.Fatalf("begin vitals: %v", err)
	}
	sys, dia := 118, 76
	got, err := svc.RecordVitals(context.Background(), v.ID, Vitals{SystolicBP: &sys, DiastolicBP: &dia})
	if err != nil {
		t.Fatalf("record vitals: %v", err)
	}
	if got.Stage != StageVitalsComplete {
		t.Fatalf("stage = %s", got.Stage)
	}
	if got.Vitals == nil || got.Vitals.RecordedAt.IsZero() {
		t.Error("vitals not stamped")
	}

	if _, err := svc.RecordVitals(context.Background(), v.ID, Vitals{}); !IsValidation(err) {
		t.Errorf("empty vitals: expected validation error, got %v", err)
	}
}

func TestFullStageProgression(t *testing.T) {
	complete := false
	gw := &mockGateway{
		nextFn: func(req gateway.IntakeRequest) (*gateway.IntakeResult, error) {
			if complete {
				return completeResult("done"), nil
			}
			return questionResult("anything else?"), nil
		},
	}
	svc, repo := newTestService(t, gw)
	v := startedVisit(t, svc, repo)
	ctx := context.Background()

	if _, err := svc.SubmitAnswer(ctx, v.ID, "a1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	complete = true
	if _, err := svc.SubmitAnswer(ctx, v.ID, "a2"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.GenerateArtifact(ctx, v.ID, ArtifactPreVisit); err != nil {
		t.Fatalf("previsit: %v", err)
	}
	if _, err := svc.BeginVitals(ctx, v.ID); err != nil {
		t.Fatalf("begin vitals: %v", err)
	}
	sys := 120
	if _, err := svc.RecordVitals(ctx, v.ID, Vitals{SystolicBP: &sys}); err != nil {
		t.Fatalf("vitals: %v", err)
	}
	if _, err := svc.GenerateArtifact(ctx, v.ID, ArtifactSOAP); err != nil {
		t.Fatalf("soap: %v", err)
	}
	if _, err := svc.GenerateArtifact(ctx, v.ID, ArtifactPostVisit); err != nil {
		t.Fatalf("postvisit: %v", err)
	}

	got, _ := repo.GetByID(ctx, v.ID)
	if got.Stage != StagePostVisitDone {
		t.Fatalf("final stage = %s", got.Stage)
	}
	if got.PreVisit == nil || got.SOAP == nil || got.PostVisit == nil {
		t.Error("missing artifacts at end of visit")
	}
}

func TestResumeRebuildsPosition(t *testing.T) {
	svc, repo := newTestService(t, &mockGateway{})
	v := startedVisit(t, svc, repo)
	if _, err := svc.SubmitAnswer(context.Background(), v.ID, "a1"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	state, err := svc.Resume(context.Background(), v.ID, v.PatientID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if state.QuestionCount != 1 || len(state.Turns) != 1 {
		t.Errorf("question count = %d turns = %d", state.QuestionCount, len(state.Turns))
	}
	if state.Visit.PendingQuestion == nil {
		t.Error("pending question lost across resume")
	}
	if state.CompletionPercent <= 0 || state.CompletionPercent >= 100 {
		t.Errorf("percent = %d", state.CompletionPercent)
	}
}

func TestResumeUsesCacheHintForPendingQuestion(t *testing.T) {
	svc, repo := newTestService(t, &mockGateway{})
	v := startedVisit(t, svc, repo)

	// Simulate a partial write where the repo lost the pending question.
	stored, _ := repo.GetByID(context.Background(), v.ID)
	stored.PendingQuestion = nil
	if err := repo.Update(context.Background(), stored); err != nil {
		t.Fatalf("update: %v", err)
	}

	state, err := svc.Resume(context.Background(), v.ID, v.PatientID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if state.Visit.PendingQuestion == nil {
		t.Fatal("cache hint not applied")
	}
}

func TestResumeWrongPatient(t *testing.T) {
	svc, repo := newTestService(t, &mockGateway{})
	v := startedVisit(t, svc, repo)

	if _, err := svc.Resume(context.Background(), v.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func strPtr(s string) *string { return &s }
