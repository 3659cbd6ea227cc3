package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"churnform/feedback"
	"churnform/ml"
	"churnform/pipeline"
	"churnform/schema"
)

type stubClassifier struct {
	features []string
	label    int
	err      error
}

func (s *stubClassifier) FeatureNames() []string { return s.features }

func (s *stubClassifier) Predict([]float64) (int, float64, error) {
	return s.label, 0.7, s.err
}

type testEnv struct {
	handler  http.Handler
	pipeline *pipeline.Pipeline
	store    *feedback.CSVStore
}

func newTestEnv(t *testing.T, classifier *stubClassifier, feedbackPath string) *testEnv {
	t.Helper()

	registry, err := schema.NewRegistry(
		[]string{schema.FieldGender, schema.FieldAge, schema.FieldMarried, schema.FieldState},
		schema.DefaultCatalog(),
		schema.Table{Field: schema.FieldGender, Labels: []string{"Male", "Female", "Other"}},
		schema.Table{Field: schema.FieldState, Labels: []string{"Kerala", "Madhya Pradesh"}},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	classifier.features = registry.ExpectedFeatures()
	adapter, err := ml.NewAdapter(classifier, registry, 0, nil)
	if err != nil {
		t.Fatalf("adapter: %v", err)
	}
	store, err := feedback.NewCSVStore(feedbackPath, nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	auditor := pipeline.NewQualityAuditor(registry)
	pl := pipeline.New(ml.NewEncoder(registry), adapter, store, pipeline.WithAuditor(auditor))

	h := NewHandlers(Deps{Pipeline: pl, Registry: registry, Feedback: store, Quality: auditor})
	mux := http.NewServeMux()
	RegisterHandlers(mux, h)
	return &testEnv{handler: mux, pipeline: pl, store: store}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/health", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(handleHealth)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	expected := `{"status":"ok"}`
	if rr.Body.String() != expected+"\n" && rr.Body.String() != expected {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), expected)
	}
}

func TestFormPageShowsDefaults(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{}, filepath.Join(t.TempDir(), "feedback_data.csv"))

	rr := env.do(httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"Telecom Feedback Collector",
		`name="satisfaction" type="number" value="5"`,
		`name="age" type="number" value="25"`,
		`<option value="Kerala">`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("form page missing %q", want)
		}
	}
	if strings.Contains(body, "Predicted Churn") {
		t.Error("fresh form should not show a prediction")
	}

	rr = env.do(httptest.NewRequest("GET", "/unknown", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rr.Code)
	}
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest("POST", "/submit", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestSubmitFormShowsPrediction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback_data.csv")
	env := newTestEnv(t, &stubClassifier{label: 1}, path)

	rr := env.do(postForm(url.Values{
		"gender":       {"Female"},
		"age":          {"40"},
		"married":      {"No"},
		"state":        {"Kerala"},
		"roam_ic":      {"20.5"},
		"satisfaction": {"2"},
	}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Submission successful!") {
		t.Error("missing success notice")
	}
	if !strings.Contains(body, "Predicted Churn: <strong>Yes</strong>") {
		t.Error("missing churn verdict")
	}

	header, rows, err := env.store.ReadAll()
	if err != nil {
		t.Fatalf("read feedback: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if got := header[len(header)-1]; got != schema.ChurnColumn {
		t.Errorf("last column = %q", got)
	}
	if got := rows[0][len(rows[0])-1]; got != "1" {
		t.Errorf("churn value = %q, want 1", got)
	}
	if got := rows[0][1]; got != "40" {
		t.Errorf("age = %q, want 40", got)
	}
}

func TestSubmitFormRejectsInvalidInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback_data.csv")
	env := newTestEnv(t, &stubClassifier{}, path)

	rr := env.do(postForm(url.Values{"age": {"10"}, "roam_og": {"lots"}}))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "must be at least 18") {
		t.Error("missing age message")
	}
	if !strings.Contains(body, `value="10"`) {
		t.Error("submitted value should be kept in the form")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("feedback file should not exist, stat err = %v", err)
	}
}

func TestSubmitFormPredictionFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback_data.csv")
	env := newTestEnv(t, &stubClassifier{err: errors.New("model exploded")}, path)

	rr := env.do(postForm(url.Values{"age": {"30"}}))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Prediction failed:") {
		t.Error("missing failure warning")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("failed prediction must not write feedback")
	}
}

func TestPredictJSON(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{label: 0}, filepath.Join(t.TempDir(), "feedback_data.csv"))

	req := httptest.NewRequest("POST", "/api/predict", strings.NewReader(`{"gender":"Other","age":61,"married":"Yes","satisfaction":9}`))
	rr := env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}

	var result pipeline.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Churn || result.Label != 0 {
		t.Errorf("result = %+v, want stay", result)
	}
	if !result.Logged || result.SubmissionID == "" {
		t.Errorf("result = %+v, want logged with id", result)
	}
	if stats := env.pipeline.Stats(); stats.Logged != 1 {
		t.Errorf("stats.Logged = %d", stats.Logged)
	}
}

func TestPredictJSONErrors(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{}, filepath.Join(t.TempDir(), "feedback_data.csv"))

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"age":`, http.StatusBadRequest},
		{"unknown field", `{"tenure":3}`, http.StatusBadRequest},
		{"out of range", `{"satisfaction":11}`, http.StatusUnprocessableEntity},
		{"bad choice", `{"married":"Maybe"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(httptest.NewRequest("POST", "/api/predict", strings.NewReader(tt.body)))
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr := env.do(httptest.NewRequest("POST", "/api/predict", strings.NewReader(`{"satisfaction":11}`)))
	var payload struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Fields["satisfaction"] == "" {
		t.Errorf("fields = %v, want satisfaction entry", payload.Fields)
	}
}

func TestPredictStoreFailureKeepsPrediction(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	env := newTestEnv(t, &stubClassifier{label: 1}, filepath.Join(blocker, "feedback_data.csv"))

	rr := env.do(httptest.NewRequest("POST", "/api/predict", strings.NewReader(`{}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	var result pipeline.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Churn || result.Logged || result.Warning == "" {
		t.Errorf("result = %+v, want churn prediction with warning", result)
	}
}

func TestPredictFailureReturns500(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{err: errors.New("boom")}, filepath.Join(t.TempDir(), "feedback_data.csv"))

	rr := env.do(httptest.NewRequest("POST", "/api/predict", strings.NewReader(`{}`)))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Prediction failed") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestFeaturesAndFeedbackSummary(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{}, filepath.Join(t.TempDir(), "feedback_data.csv"))

	rr := env.do(httptest.NewRequest("GET", "/api/features", nil))
	var features struct {
		Features    []string            `json:"features"`
		Categorical map[string][]string `json:"categorical"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &features); err != nil {
		t.Fatalf("decode features: %v", err)
	}
	if len(features.Features) != 4 || features.Features[0] != schema.FieldGender {
		t.Errorf("features = %v", features.Features)
	}
	if got := features.Categorical[schema.FieldState]; len(got) != 2 {
		t.Errorf("state categories = %v", got)
	}

	var summary struct {
		Rows   int      `json:"rows"`
		Header []string `json:"header"`
	}
	rr = env.do(httptest.NewRequest("GET", "/api/feedback", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode feedback: %v", err)
	}
	if summary.Rows != 0 || len(summary.Header) != 0 {
		t.Errorf("empty store summary = %+v", summary)
	}

	for i := 0; i < 2; i++ {
		env.do(httptest.NewRequest("POST", "/api/predict", strings.NewReader(`{}`)))
	}
	rr = env.do(httptest.NewRequest("GET", "/api/feedback", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode feedback: %v", err)
	}
	if summary.Rows != 2 || len(summary.Header) != 20 {
		t.Errorf("summary = %+v, want 2 rows and 20 columns", summary)
	}
}

func TestQualityReport(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{}, filepath.Join(t.TempDir(), "feedback_data.csv"))

	rr := env.do(httptest.NewRequest("POST", "/api/predict", strings.NewReader(`{"state":"Atlantis"}`)))
	var result pipeline.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Issues) != 1 || result.Issues[0].Field != schema.FieldState {
		t.Fatalf("issues = %+v, want unseen state", result.Issues)
	}

	rr = env.do(httptest.NewRequest("GET", "/api/quality?limit=10", nil))
	var report struct {
		Stats  pipeline.QualityStats   `json:"stats"`
		Recent []pipeline.QualityIssue `json:"recent"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Stats.Flagged != 1 || len(report.Recent) != 1 {
		t.Errorf("report = %+v", report)
	}
}
