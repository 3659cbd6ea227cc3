package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qhttp "churnform/http"
	"churnform/ml"
	"churnform/schema"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8501, cfg.Http.Port)
	assert.Equal(t, "feedback_data.csv", cfg.Feedback.Path)
	assert.Equal(t, 30*time.Second, cfg.Http.Timeout)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
http:
  port: 9000
  timeout: 5s
model:
  type: decision_tree
  path: models/churn.json
  cache_size: 16
schema:
  categories:
    Gender: [Male, Female, Other]
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Http.Port)
	assert.Equal(t, 5*time.Second, cfg.Http.Timeout)
	assert.Equal(t, "models/churn.json", cfg.Model.Path)
	assert.Equal(t, []string{"Male", "Female", "Other"}, cfg.Schema.Categories["Gender"])
	assert.Equal(t, "final_telco.csv", cfg.Reference.Path, "unset keys keep defaults")

	level, err := LogLevelFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", level)
}

func TestLoadConfigRejectsBadPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  port: 70000\n"), 0o600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func writeFixtures(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	features := []string{schema.FieldGender, schema.FieldAge, schema.FieldMarried, schema.FieldPaymentMethod}
	tree := ml.NewDecisionTree(features, []ml.TreeNode{
		{FeatureIdx: 2, Threshold: 0.5, LeftChild: 1, RightChild: 2},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, ClassLabel: 0, IsLeaf: true},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, ClassLabel: 1, IsLeaf: true},
	})
	modelPath := filepath.Join(dir, "churn_model.json")
	require.NoError(t, tree.Save(modelPath))

	refPath := filepath.Join(dir, "final_telco.csv")
	require.NoError(t, os.WriteFile(refPath, []byte("Gender,Payment Method\nFemale,Bank Withdrawal\nMale,Credit Card\n"), 0o600))

	cfg := DefaultConfig()
	cfg.Model.Path = modelPath
	cfg.Reference.Path = refPath
	cfg.Feedback.Path = filepath.Join(dir, "out", "feedback_data.csv")
	cfg.Schema.Categories = map[string][]string{schema.FieldGender: {"Male", "Female", "Other"}}
	return cfg
}

func TestBuildWiresPipeline(t *testing.T) {
	cfg := writeFixtures(t)
	services, err := Build(cfg, nil)
	require.NoError(t, err)

	closed := false
	services.OnClose(closerFunc(func() error { closed = true; return nil }))
	defer func() {
		require.NoError(t, services.Close())
		assert.True(t, closed)
	}()

	assert.Equal(t, 1, services.Registry.CategoryCode(schema.FieldGender, "Male"), "fixed tables come first")
	assert.Equal(t, 2, services.Registry.CategoryCode(schema.FieldPaymentMethod, "Credit Card"))

	record := ml.NewRecord(
		ml.Field{Name: schema.FieldGender, Value: ml.Text("Male")},
		ml.Field{Name: schema.FieldMarried, Value: ml.YesNo(true)},
	)
	result, err := services.Pipeline.Submit(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Label)
	assert.Len(t, result.Issues, 2, "age and payment method fall back to defaults")

	_, rows, err := services.Store.ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	mux := http.NewServeMux()
	qhttp.RegisterHandlers(mux, services.Handlers())
	for _, path := range []string{"/api/features", "/api/stats", "/api/quality", "/metrics"} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestBuildMissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.Path = filepath.Join(t.TempDir(), "absent.json")
	_, err := Build(cfg, nil)
	assert.Error(t, err)
}

func TestCloseAggregatesErrors(t *testing.T) {
	s := &Services{}
	s.OnClose(closerFunc(func() error { return errors.New("first") }))
	s.OnClose(closerFunc(func() error { return errors.New("second") }))

	err := s.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
}
