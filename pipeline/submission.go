package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"churnform/feedback"
	"churnform/ml"
	"churnform/monitoring"
)

// Encoder 特征编码
type Encoder interface {
	Encode(record ml.Record) ml.FeatureVector
}

// Predictor 推理适配器
type Predictor interface {
	Predict(ctx context.Context, vec ml.FeatureVector) (ml.Prediction, error)
}

// Store 反馈存储
type Store interface {
	Append(ctx context.Context, record ml.Record, label int) error
}

// Publisher 预测结果推送
type Publisher interface {
	Publish(msgType monitoring.MessageType, data interface{}) error
}

// Result 单次提交结果
type Result struct {
	SubmissionID string         `json:"submission_id"`
	Label        int            `json:"label"`
	Churn        bool           `json:"churn"`
	Confidence   float64        `json:"confidence"`
	Logged       bool           `json:"logged"`
	Warning      string         `json:"warning,omitempty"`
	Issues       []QualityIssue `json:"issues,omitempty"`
	Elapsed      time.Duration  `json:"elapsed_ns"`
}

// Stats 流水线统计
type Stats struct {
	TotalProcessed int64     `json:"total_processed"`
	Predicted      int64     `json:"predicted"`
	Logged         int64     `json:"logged"`
	Rejected       int64     `json:"rejected"`
	PredictedChurn int64     `json:"predicted_churn"`
	LastSubmission time.Time `json:"last_submission"`
}

// Pipeline 运行 编码 → 推理 → 记录 的一次性流程
type Pipeline struct {
	encoder   Encoder
	predictor Predictor
	store     Store
	publisher Publisher
	auditor   *QualityAuditor
	metrics   *monitoring.Metrics
	logger    *zap.Logger

	// one submission runs to completion before the next starts
	mu sync.Mutex

	stats     Stats
	statsLock sync.RWMutex
}

// Option 可选配置
type Option func(*Pipeline)

func WithPublisher(p Publisher) Option {
	return func(pl *Pipeline) { pl.publisher = p }
}

func WithAuditor(a *QualityAuditor) Option {
	return func(pl *Pipeline) { pl.auditor = a }
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(pl *Pipeline) { pl.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(pl *Pipeline) {
		if l != nil {
			pl.logger = l
		}
	}
}

// New 创建流水线
func New(encoder Encoder, predictor Predictor, store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		encoder:   encoder,
		predictor: predictor,
		store:     store,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit 处理一次提交。预测失败时不写反馈；写入失败时仍返回预测结果及警告。
func (p *Pipeline) Submit(ctx context.Context, record ml.Record) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	result := Result{SubmissionID: uuid.NewString()}
	logger := p.logger.With(zap.String("submission_id", result.SubmissionID))

	if p.auditor != nil {
		result.Issues = p.auditor.Audit(record)
		for _, issue := range result.Issues {
			if p.metrics != nil {
				p.metrics.ObserveQualityIssue(issue.Type)
			}
			logger.Debug("quality issue",
				zap.String("type", issue.Type),
				zap.String("field", issue.Field),
				zap.String("message", issue.Message),
			)
		}
	}

	vec := p.encoder.Encode(record)
	prediction, err := p.predictor.Predict(ctx, vec)
	if err != nil {
		outcome := monitoring.OutcomePredictFailed
		if errors.Is(err, ml.ErrShapeMismatch) {
			outcome = monitoring.OutcomeShapeMismatch
		}
		p.finish(outcome, start, result)
		logger.Warn("submission rejected", zap.String("outcome", outcome), zap.Error(err))
		return Result{}, err
	}

	result.Label = prediction.Label
	result.Churn = prediction.Churn()
	result.Confidence = prediction.Confidence
	if p.metrics != nil {
		p.metrics.ObservePrediction(prediction.Label, prediction.Cached)
	}

	if err := p.store.Append(ctx, record, prediction.Label); err != nil {
		result.Warning = fmt.Sprintf("Prediction made but feedback was not saved: %v", err)
		result.Elapsed = time.Since(start)
		p.finish(monitoring.OutcomeStoreFailed, start, result)
		logger.Error("feedback append failed", zap.Error(err))
		if !errors.Is(err, feedback.ErrStoreWrite) {
			err = fmt.Errorf("%w: %w", feedback.ErrStoreWrite, err)
		}
		return result, err
	}
	result.Logged = true
	result.Elapsed = time.Since(start)
	if p.metrics != nil {
		p.metrics.ObserveFeedbackRow()
	}
	p.finish(monitoring.OutcomeOK, start, result)

	if p.publisher != nil {
		if err := p.publisher.Publish(monitoring.PredictionEvent, result); err != nil {
			logger.Warn("publish prediction failed", zap.Error(err))
		}
	}

	logger.Info("submission scored",
		zap.Int("label", result.Label),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("cached", prediction.Cached),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// Stats 返回统计快照
func (p *Pipeline) Stats() Stats {
	p.statsLock.RLock()
	defer p.statsLock.RUnlock()
	return p.stats
}

func (p *Pipeline) finish(outcome string, start time.Time, result Result) {
	if p.metrics != nil {
		p.metrics.ObserveSubmission(outcome, time.Since(start))
	}

	p.statsLock.Lock()
	defer p.statsLock.Unlock()
	p.stats.TotalProcessed++
	p.stats.LastSubmission = start
	switch outcome {
	case monitoring.OutcomeShapeMismatch, monitoring.OutcomePredictFailed:
		p.stats.Rejected++
		return
	}
	p.stats.Predicted++
	if result.Churn {
		p.stats.PredictedChurn++
	}
	if outcome == monitoring.OutcomeOK {
		p.stats.Logged++
	}
}
