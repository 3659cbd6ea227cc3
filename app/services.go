package app

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"churnform/feedback"
	qhttp "churnform/http"
	"churnform/ml"
	"churnform/monitoring"
	"churnform/pipeline"
	"churnform/schema"
)

// Services is everything a submission touches, built once at startup.
type Services struct {
	Registry *schema.Registry
	Model    ml.Classifier
	Encoder  *ml.Encoder
	Adapter  *ml.Adapter
	Store    *feedback.CSVStore
	Metrics  *monitoring.Metrics
	Hub      *monitoring.Hub
	Auditor  *pipeline.QualityAuditor
	Pipeline *pipeline.Pipeline
	Logger   *zap.Logger

	closers []io.Closer
}

// Build loads the model artifact and reference dataset and wires the pipeline.
func Build(cfg *Config, logger *zap.Logger) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	model, err := ml.LoadModel(cfg.Model.Type, cfg.Model.Path)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", cfg.Model.Path, err)
	}

	catalog := schema.DefaultCatalog()
	tables := fixedTables(cfg.Schema.Categories)
	if cfg.Reference.Path != "" {
		ref, err := schema.LoadReference(cfg.Reference.Path, cfg.Reference.Charset, schema.CategoricalFields(catalog))
		if err != nil {
			return nil, fmt.Errorf("load reference %s: %w", cfg.Reference.Path, err)
		}
		tables = append(tables, ref...)
	}

	registry, err := schema.NewRegistry(model.FeatureNames(), catalog, tables...)
	if err != nil {
		return nil, fmt.Errorf("build schema registry: %w", err)
	}
	adapter, err := ml.NewAdapter(model, registry, cfg.Model.CacheSize, logger.Named("model"))
	if err != nil {
		return nil, err
	}
	store, err := feedback.NewCSVStore(cfg.Feedback.Path, logger.Named("feedback"))
	if err != nil {
		return nil, err
	}

	encoder := ml.NewEncoder(registry)
	metrics := monitoring.NewMetrics()
	hub := monitoring.NewHub(logger.Named("feed"))
	go hub.Run()
	auditor := pipeline.NewQualityAuditor(registry)

	s := &Services{
		Registry: registry,
		Model:    model,
		Encoder:  encoder,
		Adapter:  adapter,
		Store:    store,
		Metrics:  metrics,
		Hub:      hub,
		Auditor:  auditor,
		Logger:   logger,
		Pipeline: pipeline.New(encoder, adapter, store,
			pipeline.WithMetrics(metrics),
			pipeline.WithPublisher(hub),
			pipeline.WithAuditor(auditor),
			pipeline.WithLogger(logger.Named("pipeline")),
		),
	}

	logger.Info("services ready",
		zap.String("model", cfg.Model.Path),
		zap.Int("features", registry.Len()),
		zap.Strings("categorical", registry.CategoricalFields()),
		zap.String("feedback", store.Path()),
	)
	return s, nil
}

// OnClose registers c to be closed, in reverse order, by Close.
func (s *Services) OnClose(c io.Closer) {
	s.closers = append(s.closers, c)
}

// Close stops the feed, closes registered resources and flushes the logger.
func (s *Services) Close() error {
	var err error
	if s.Hub != nil {
		s.Hub.Stop()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.closers[i].Close())
	}
	s.closers = nil
	if s.Logger != nil {
		err = multierr.Append(err, ignoreSyncError(s.Logger.Sync()))
	}
	return err
}

func fixedTables(categories map[string][]string) []schema.Table {
	fields := make([]string, 0, len(categories))
	for field := range categories {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	tables := make([]schema.Table, 0, len(fields))
	for _, field := range fields {
		tables = append(tables, schema.Table{Field: field, Labels: categories[field]})
	}
	return tables
}

// Handlers exposes the services to the HTTP layer.
func (s *Services) Handlers() *qhttp.Handlers {
	return qhttp.NewHandlers(qhttp.Deps{
		Pipeline: s.Pipeline,
		Registry: s.Registry,
		Feedback: s.Store,
		Quality:  s.Auditor,
		Metrics:  s.Metrics.Handler(),
		Feed:     http.HandlerFunc(s.Hub.HandleWebSocket),
		Logger:   s.Logger.Named("http"),
	})
}
