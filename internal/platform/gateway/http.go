package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient talks to a hosted generation service over JSON/HTTP. The service
// keeps its own conversation state keyed by session, so artifact calls only
// send identifiers.
type HTTPClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// NewHTTPClient creates a client for the generation service at baseURL.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) StartIntake(ctx context.Context, req IntakeRequest) (*IntakeResult, error) {
	payload := map[string]interface{}{
		"session_id":       req.SessionID,
		"initial_symptoms": req.InitialSymptoms,
	}
	var result IntakeResult
	if err := c.post(ctx, "start_intake", "/intake/start", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) NextQuestion(ctx context.Context, req IntakeRequest) (*IntakeResult, error) {
	payload := map[string]interface{}{
		"session_id":    req.SessionID,
		"last_question": req.LastQuestion,
		"last_answer":   req.LastAnswer,
	}
	var result IntakeResult
	if err := c.post(ctx, "next_question", "/intake/next", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) EditAnswer(ctx context.Context, patientID, visitID string, questionNumber int, newAnswer string) error {
	payload := map[string]interface{}{
		"patient_id":      patientID,
		"visit_id":        visitID,
		"question_number": questionNumber,
		"new_answer":      newAnswer,
	}
	return c.post(ctx, "edit_answer", "/intake/answers/edit", payload, nil)
}

func (c *HTTPClient) GeneratePreVisit(ctx context.Context, vc VisitContext) (*PreVisitSummary, error) {
	var result PreVisitSummary
	if err := c.post(ctx, "previsit_summary", "/summaries/previsit", idPayload(vc), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) GenerateSOAP(ctx context.Context, vc VisitContext) (*SOAPNote, error) {
	var result SOAPNote
	if err := c.post(ctx, "soap_note", "/notes/soap", idPayload(vc), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) GeneratePostVisit(ctx context.Context, vc VisitContext) (*PostVisitSummary, error) {
	var result PostVisitSummary
	if err := c.post(ctx, "postvisit_summary", "/summaries/postvisit", idPayload(vc), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func idPayload(vc VisitContext) map[string]interface{} {
	return map[string]interface{}{
		"patient_id": vc.PatientID,
		"visit_id":   vc.VisitID,
	}
}

func (c *HTTPClient) post(ctx context.Context, op, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &ConnectivityError{Op: op, Attempts: 1, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ConnectivityError{Op: op, Attempts: 1, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ConnectivityError{Op: op, Attempts: 1, Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 200))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(unwrapData(raw), out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// unwrapData flattens the optional {"data": {...}} envelope some deployments
// of the generation service wrap responses in.
func unwrapData(body []byte) []byte {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return env.Data
	}
	return body
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
