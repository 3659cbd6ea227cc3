package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"churnform/feedback"
	"churnform/form"
	"churnform/ml"
	"churnform/pipeline"
	"churnform/schema"
)

//go:embed templates/form.html
var templateFS embed.FS

var formPage = template.Must(template.ParseFS(templateFS, "templates/form.html"))

// Submitter 提交流水线
type Submitter interface {
	Submit(ctx context.Context, record ml.Record) (pipeline.Result, error)
	Stats() pipeline.Stats
}

// FeedbackReader 反馈文件读取
type FeedbackReader interface {
	Path() string
	ReadAll() ([]string, [][]string, error)
}

// QualityReporter 输入质量统计
type QualityReporter interface {
	Stats() pipeline.QualityStats
	Issues(limit int) []pipeline.QualityIssue
}

// Deps 处理器依赖
type Deps struct {
	Pipeline Submitter
	Registry *schema.Registry
	Feedback FeedbackReader
	Quality  QualityReporter
	Metrics  http.Handler
	Feed     http.Handler
	Logger   *zap.Logger
}

// Handlers 路由处理器
type Handlers struct {
	pipeline Submitter
	registry *schema.Registry
	feedback FeedbackReader
	quality  QualityReporter
	metrics  http.Handler
	feed     http.Handler
	logger   *zap.Logger
}

// NewHandlers 创建处理器
func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		pipeline: deps.Pipeline,
		registry: deps.Registry,
		feedback: deps.Feedback,
		quality:  deps.Quality,
		metrics:  deps.Metrics,
		feed:     deps.Feed,
		logger:   logger,
	}
}

// RegisterHandlers 注册路由
func RegisterHandlers(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /{$}", h.handleForm)
	mux.HandleFunc("POST /submit", h.handleSubmit)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/features", h.handleFeatures)
	mux.HandleFunc("GET /api/feedback", h.handleFeedback)
	mux.HandleFunc("GET /api/stats", h.handleStats)
	mux.HandleFunc("GET /api/health", handleHealth)
	if h.quality != nil {
		mux.HandleFunc("GET /api/quality", h.handleQuality)
	}
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
	if h.feed != nil {
		mux.Handle("GET /api/ws/predictions", h.feed)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pageData 表单页面数据
type pageData struct {
	Fields  []pageField
	Errors  form.ValidationErrors
	Result  *pipeline.Result
	Failure string
}

type pageField struct {
	Key         string
	Label       string
	Value       string
	Placeholder string
	Min         string
	Max         string
	Number      bool
	Options     []string
	Suggestions []string
}

func (h *Handlers) handleForm(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, http.StatusOK, pageData{Fields: h.pageFields(form.Defaults())})
}

// handleSubmit 处理表单提交
func (h *Handlers) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	submission, err := form.FromValues(r.PostForm)
	data := pageData{Fields: h.pageFields(submission)}
	if err != nil {
		data.Errors = validationErrors(err)
		h.renderPage(w, http.StatusUnprocessableEntity, data)
		return
	}
	record, err := submission.Record()
	if err != nil {
		data.Errors = validationErrors(err)
		h.renderPage(w, http.StatusUnprocessableEntity, data)
		return
	}

	result, err := h.pipeline.Submit(r.Context(), record)
	switch {
	case err == nil, errors.Is(err, feedback.ErrStoreWrite):
		data.Result = &result
		h.renderPage(w, http.StatusOK, data)
	default:
		h.logger.Warn("form submission failed",
			zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		data.Failure = err.Error()
		h.renderPage(w, http.StatusInternalServerError, data)
	}
}

// handlePredict JSON提交接口
func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	submission := form.Defaults()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&submission); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	record, err := submission.Record()
	if err != nil {
		var verrs form.ValidationErrors
		if errors.As(err, &verrs) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":  "validation failed",
				"fields": verrs,
			})
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.pipeline.Submit(r.Context(), record)
	if err != nil && !errors.Is(err, feedback.ErrStoreWrite) {
		h.logger.Warn("prediction failed",
			zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Prediction failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleFeatures 返回模型特征和类别表
func (h *Handlers) handleFeatures(w http.ResponseWriter, r *http.Request) {
	categorical := make(map[string][]string)
	for _, field := range h.registry.CategoricalFields() {
		categorical[field] = h.registry.Categories(field)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"features":    h.registry.ExpectedFeatures(),
		"categorical": categorical,
	})
}

// handleFeedback 返回反馈文件摘要
func (h *Handlers) handleFeedback(w http.ResponseWriter, r *http.Request) {
	header, rows, err := h.feedback.ReadAll()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if header == nil {
		header = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"path":   h.feedback.Path(),
		"header": header,
		"rows":   len(rows),
	})
}

func (h *Handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.pipeline.Stats())
}

// handleQuality 返回输入质量统计和最近的问题
func (h *Handlers) handleQuality(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil {
			limit = l
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats":  h.quality.Stats(),
		"recent": h.quality.Issues(limit),
	})
}

func (h *Handlers) renderPage(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := formPage.Execute(w, data); err != nil {
		h.logger.Error("render form page", zap.Error(err))
	}
}

func (h *Handlers) pageFields(s form.Submission) []pageField {
	yesNo := []string{"Yes", "No"}
	suggest := func(field string) []string {
		if h.registry == nil {
			return nil
		}
		return h.registry.Categories(field)
	}
	return []pageField{
		{Key: "gender", Label: "Gender", Value: s.Gender, Options: []string{"Male", "Female", "Other"}},
		{Key: "age", Label: "Age", Value: strconv.Itoa(s.Age), Number: true, Min: "18", Max: "100"},
		{Key: "married", Label: "Married", Value: s.Married, Options: yesNo},
		{Key: "dependents", Label: "Number of Dependents", Value: strconv.Itoa(s.Dependents), Number: true, Min: "0"},
		{Key: "state", Label: "State", Value: s.State, Placeholder: "e.g. Madhya Pradesh", Suggestions: suggest(schema.FieldState)},
		{Key: "county", Label: "County", Value: s.County, Placeholder: "e.g. India", Suggestions: suggest(schema.FieldCounty)},
		{Key: "area_codes", Label: "Area Codes", Value: s.AreaCodes, Placeholder: "e.g. 0731"},
		{Key: "roam_ic", Label: "Roaming Incoming", Value: s.RoamIC, Placeholder: "e.g. 20.5"},
		{Key: "roam_og", Label: "Roaming Outgoing", Value: s.RoamOG, Placeholder: "e.g. 15.0"},
		{Key: "loc_og_t2m", Label: "Local OG T2M", Value: s.LocOGT2M, Placeholder: "e.g. 50.2"},
		{Key: "online_backup", Label: "Online Backup", Value: s.OnlineBackup, Options: yesNo},
		{Key: "device_protection", Label: "Device Protection Plan", Value: s.DeviceProtection, Options: yesNo},
		{Key: "premium_tech_support", Label: "Premium Tech Support", Value: s.PremiumTechSupport, Options: yesNo},
		{Key: "streaming_tv", Label: "Streaming TV", Value: s.StreamingTV, Options: yesNo},
		{Key: "streaming_movies", Label: "Streaming Movies", Value: s.StreamingMovies, Options: yesNo},
		{Key: "streaming_music", Label: "Streaming Music", Value: s.StreamingMusic, Options: yesNo},
		{Key: "unlimited_data", Label: "Unlimited Data", Value: s.UnlimitedData, Options: yesNo},
		{Key: "payment_method", Label: "Payment Method", Value: s.PaymentMethod, Placeholder: "e.g. Credit Card", Suggestions: suggest(schema.FieldPaymentMethod)},
		{Key: "satisfaction", Label: "Satisfaction Score", Value: strconv.Itoa(s.Satisfaction), Number: true, Min: "0", Max: "10"},
	}
}

func validationErrors(err error) form.ValidationErrors {
	var verrs form.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs
	}
	return form.ValidationErrors{"form": err.Error()}
}

// respondJSON 统一JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode JSON", zap.Error(err))
	}
}

// respondError 统一错误响应
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
