package handlers

import (
	"fmt"

	"dailybrief/internal/brief"
	"dailybrief/internal/config"
	"dailybrief/internal/connector"
	"dailybrief/internal/core"
	"dailybrief/internal/llm"
	"dailybrief/internal/pipeline"
	"dailybrief/internal/runs"
	"dailybrief/internal/store"
	"dailybrief/internal/topicbrief"
)

// engine bundles the wired components behind every command.
type engine struct {
	cfg        *config.Config
	store      *store.Store
	supervisor *runs.Supervisor
	ingester   *connector.Ingester
	processor  *pipeline.Processor
	builder    *brief.Builder
}

// newEngine opens the store and wires all components from configuration.
// Commands that never touch the model still construct the client lazily, so
// a missing API key only fails AI commands.
func newEngine() (*engine, error) {
	cfg := config.Get()

	s, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	sup := runs.NewSupervisor(s)
	ing := connector.NewIngester(s, cfg.FetchTimeout(), cfg.Ingest.RSSMaxItems)

	return &engine{
		cfg:        cfg,
		store:      s,
		supervisor: sup,
		ingester:   ing,
	}, nil
}

// withAI attaches the model-backed components. Separate from newEngine so
// ingest and read-only commands work without credentials.
func (e *engine) withAI() error {
	factory := llm.NewFactory(e.cfg.AI.APIKey)
	client, err := factory.Client(e.cfg.AI.Provider, e.cfg.AI.Model, e.cfg.AI.Temperature)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	e.processor = pipeline.NewProcessor(e.store, client, pipeline.Options{
		ClassificationTimeout:  e.cfg.ClassificationTimeout(),
		ExtractionTimeout:      e.cfg.ExtractionTimeout(),
		VideoTimeout:           e.cfg.VideoTimeout(),
		VideoExtractionEnabled: e.cfg.AI.VideoExtractionEnabled,
	}, e.cfg.RateLimitDelay())

	generator := topicbrief.NewGenerator(e.store, client,
		e.cfg.Brief.TopicBriefBatchSize, e.cfg.TopicBriefTimeout())
	e.builder = brief.NewBuilder(e.store, generator,
		e.cfg.Brief.MaxItems, e.cfg.Brief.MaxPerTopic, e.cfg.Brief.LookbackHours)
	return nil
}

// waitAndReport blocks until the run finishes, prints its outcome, and
// returns an error when the run failed.
func (e *engine) waitAndReport(runID int64) error {
	e.supervisor.Wait()
	run, err := e.store.GetRun(runID)
	if err != nil {
		return err
	}
	fmt.Printf("Run %d (%s) finished: %s\n", run.ID, run.Kind, run.Status)
	if run.ErrorText != "" {
		fmt.Printf("Error: %s\n", run.ErrorText)
	}
	if run.Status != core.RunSuccess {
		return fmt.Errorf("run %d ended %s", run.ID, run.Status)
	}
	return nil
}

func (e *engine) close() {
	e.supervisor.Wait()
	e.store.Close()
}
