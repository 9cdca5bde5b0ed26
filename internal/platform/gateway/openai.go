package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient generates intake questions and stage artifacts directly
// against the OpenAI chat completion API. Unlike HTTPClient it is entirely
// stateless: whatever conversation context a call needs travels in the
// request, and answer edits have nothing to persist remotely.
type OpenAIClient struct {
	client       *openai.Client
	chatModel    string
	summaryModel string
	minQuestions int
	maxQuestions int
}

const defaultChatModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey       string
	ChatModel    string
	SummaryModel string
	MinQuestions int
	MaxQuestions int
}

// NewOpenAIClient constructs an OpenAI-backed gateway client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaultChatModel
	}
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = cfg.ChatModel
	}
	if cfg.MinQuestions <= 0 {
		cfg.MinQuestions = 5
	}
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = 12
	}
	return &OpenAIClient{
		client:       openai.NewClient(cfg.APIKey),
		chatModel:    cfg.ChatModel,
		summaryModel: cfg.SummaryModel,
		minQuestions: cfg.MinQuestions,
		maxQuestions: cfg.MaxQuestions,
	}
}

const intakeSystemPrompt = `You are a clinical intake assistant gathering pre-visit information.
Ask one focused, patient-friendly question at a time about the presenting complaint.
Never repeat a question that was already asked. Never offer a diagnosis.
Reply with strict JSON only: {"next_question": string, "type": "text"|"yes_no", "completion_percent": int}.
When enough information has been gathered, set next_question to "` + CompletionMarker + `" and include a "summary" field with a short recap of the findings.`

func (c *OpenAIClient) StartIntake(ctx context.Context, req IntakeRequest) (*IntakeResult, error) {
	symptoms := strings.Join(req.InitialSymptoms, ", ")
	if symptoms == "" {
		symptoms = "general consultation"
	}
	user := fmt.Sprintf(
		"A patient is starting intake. Reported symptoms: %s.\nGenerate the first question.",
		symptoms)

	content, err := c.chat(ctx, "start_intake", intakeSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	result := c.parseIntakeReply(content)
	if result.MaxQuestions == nil {
		max := c.maxQuestions
		result.MaxQuestions = &max
	}
	return result, nil
}

func (c *OpenAIClient) NextQuestion(ctx context.Context, req IntakeRequest) (*IntakeResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Presenting complaint: %s\n", strings.Join(req.InitialSymptoms, ", "))
	fmt.Fprintf(&b, "Questions so far (%d of at most %d):\n", req.QuestionCount, c.maxQuestions)
	for i, q := range req.AskedQuestions {
		answer := ""
		if i < len(req.PreviousAnswers) {
			answer = req.PreviousAnswers[i]
		}
		fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n", i+1, q, answer)
	}
	fmt.Fprintf(&b, "Latest question: %s\nLatest answer: %s\n", req.LastQuestion, req.LastAnswer)
	if req.QuestionCount < c.minQuestions {
		fmt.Fprintf(&b, "Fewer than %d questions have been answered; continue asking.\n", c.minQuestions)
	} else {
		b.WriteString("If the history is sufficiently complete, finish the interview.\n")
	}
	b.WriteString("Generate the next question, or finish.")

	content, err := c.chat(ctx, "next_question", intakeSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}
	result := c.parseIntakeReply(content)
	if result.MaxQuestions == nil {
		max := c.maxQuestions
		result.MaxQuestions = &max
	}
	return result, nil
}

// EditAnswer is a no-op for the OpenAI backend: conversation context is
// rebuilt from the repository on every call, so there is no remote copy of
// the answer to update.
func (c *OpenAIClient) EditAnswer(_ context.Context, _, _ string, questionNumber int, newAnswer string) error {
	if questionNumber < 1 {
		return fmt.Errorf("question number must be 1-based, got %d", questionNumber)
	}
	if strings.TrimSpace(newAnswer) == "" {
		return fmt.Errorf("new answer must not be empty")
	}
	return nil
}

const preVisitSystemPrompt = `You are a clinical documentation assistant. From the intake interview below,
write a concise pre-visit summary for the treating clinician.
Reply with strict JSON only: {"summary": string, "red_flags": [string]}.`

func (c *OpenAIClient) GeneratePreVisit(ctx context.Context, vc VisitContext) (*PreVisitSummary, error) {
	content, err := c.chat(ctx, "previsit_summary", preVisitSystemPrompt, formatIntake(vc))
	if err != nil {
		return nil, err
	}
	var out PreVisitSummary
	if err := json.Unmarshal(extractJSON(content), &out); err != nil {
		out = PreVisitSummary{Summary: strings.TrimSpace(content)}
	}
	out.Meta = c.meta(c.summaryModel)
	return &out, nil
}

const soapSystemPrompt = `You are a clinical documentation assistant. From the intake interview and vitals
below, draft a SOAP note. Keep each section faithful to what was reported; do not invent findings.
Reply with strict JSON only:
{"subjective": string, "objective": string, "assessment": string, "plan": string,
 "highlights": [string], "red_flags": [string]}.`

func (c *OpenAIClient) GenerateSOAP(ctx context.Context, vc VisitContext) (*SOAPNote, error) {
	var b strings.Builder
	b.WriteString(formatIntake(vc))
	if vc.VitalsSummary != "" {
		fmt.Fprintf(&b, "\nVitals: %s\n", vc.VitalsSummary)
	}
	if vc.PreVisit != nil {
		fmt.Fprintf(&b, "\nPre-visit summary: %s\n", vc.PreVisit.Summary)
	}

	content, err := c.chat(ctx, "soap_note", soapSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}
	var out SOAPNote
	if err := json.Unmarshal(extractJSON(content), &out); err != nil {
		return nil, fmt.Errorf("decode soap note: %w", err)
	}
	out.Meta = c.meta(c.summaryModel)
	return &out, nil
}

const postVisitSystemPrompt = `You are writing a post-visit summary a patient will read. Use plain language.
Reply with strict JSON only:
{"chief_complaint": string, "key_findings": [string], "diagnosis": string,
 "medications": [string], "tests_ordered": [string], "patient_instructions": [string],
 "red_flag_symptoms": [string], "reassurance_note": string, "next_appointment": string}.`

func (c *OpenAIClient) GeneratePostVisit(ctx context.Context, vc VisitContext) (*PostVisitSummary, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s\nChief complaint: %s\n", vc.PatientName, vc.Symptom)
	if vc.SOAP != nil {
		fmt.Fprintf(&b, "SOAP note:\nSubjective: %s\nObjective: %s\nAssessment: %s\nPlan: %s\n",
			vc.SOAP.Subjective, vc.SOAP.Objective, vc.SOAP.Assessment, vc.SOAP.Plan)
	}

	content, err := c.chat(ctx, "postvisit_summary", postVisitSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}
	var out PostVisitSummary
	if err := json.Unmarshal(extractJSON(content), &out); err != nil {
		return nil, fmt.Errorf("decode post-visit summary: %w", err)
	}
	if out.ChiefComplaint == "" {
		out.ChiefComplaint = vc.Symptom
	}
	if out.ReassuranceNote == "" {
		out.ReassuranceNote = "Please contact us if symptoms worsen or if you have questions."
	}
	out.Meta = c.meta(c.summaryModel)
	return &out, nil
}

func (c *OpenAIClient) chat(ctx context.Context, op, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", &ConnectivityError{Op: op, Attempts: 1, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ConnectivityError{Op: op, Attempts: 1, Err: fmt.Errorf("empty completion response")}
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) meta(model string) GenerationMeta {
	return GenerationMeta{Model: model, GeneratedAt: time.Now().UTC()}
}

// parseIntakeReply interprets a model reply that should be JSON but may be a
// bare question string.
func (c *OpenAIClient) parseIntakeReply(content string) *IntakeResult {
	var wire struct {
		NextQuestion      *string `json:"next_question"`
		Type              string  `json:"type"`
		CompletionPercent *int    `json:"completion_percent"`
		MaxQuestions      *int    `json:"max_questions"`
		Summary           string  `json:"summary"`
	}
	if err := json.Unmarshal(extractJSON(content), &wire); err == nil && (wire.NextQuestion != nil || wire.Summary != "") {
		result := &IntakeResult{
			NextQuestion:      wire.NextQuestion,
			Summary:           wire.Summary,
			Type:              QuestionTypeText,
			CompletionPercent: wire.CompletionPercent,
			MaxQuestions:      wire.MaxQuestions,
		}
		if wire.Type == string(QuestionTypeYesNo) {
			result.Type = QuestionTypeYesNo
		}
		return result
	}

	q := strings.TrimSpace(content)
	return &IntakeResult{NextQuestion: &q, Type: QuestionTypeText}
}

// formatIntake renders the interview transcript for prompting.
func formatIntake(vc VisitContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s\nPresenting complaint: %s\nInterview (%s answers):\n",
		vc.PatientName, vc.Symptom, strconv.Itoa(len(vc.Turns)))
	for i, t := range vc.Turns {
		fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n", i+1, t.Question, t.Answer)
	}
	if vc.IntakeSummary != "" {
		fmt.Fprintf(&b, "Interview recap: %s\n", vc.IntakeSummary)
	}
	return b.String()
}

// extractJSON strips markdown fences and leading prose so irregular model
// output still decodes.
func extractJSON(content string) []byte {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") {
		if start := strings.Index(s, "{"); start >= 0 {
			if end := strings.LastIndex(s, "}"); end > start {
				s = s[start : end+1]
			}
		}
	}
	return []byte(s)
}
