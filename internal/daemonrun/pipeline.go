package daemonrun

import (
	"fmt"
	"log/slog"

	"screendescribe/internal/capture"
	"screendescribe/internal/config"
	"screendescribe/internal/history"
	"screendescribe/internal/inference"
	"screendescribe/internal/notifications"
	"screendescribe/internal/status"
	"screendescribe/internal/tracking"
	"screendescribe/internal/workflow"
)

// pipeline holds the collaborators shared by the daemon and one-shot runs.
type pipeline struct {
	orchestrator *workflow.Orchestrator
	status       *status.Store
	history      *history.Store
	notifier     notifications.Service
}

func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	capturer, err := capture.NewCommandCapturer(cfg.Capture, logger)
	if err != nil {
		return nil, err
	}

	runs, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}

	p := &pipeline{
		status:   status.NewStore(),
		history:  runs,
		notifier: notifications.NewService(cfg),
	}
	orch, err := workflow.New(workflow.Deps{
		Capturer:  capturer,
		Describer: inference.NewClient(cfg.Inference, logger),
		Appender:  tracking.NewFile(cfg.Tracking.OutputFile),
		Status:    p.status,
		Logger:    logger,
		Notifier:  p.notifier,
		History:   runs,
	}, workflow.WithPreviewLength(cfg.Tracking.PreviewLength))
	if err != nil {
		runs.Close()
		return nil, err
	}
	p.orchestrator = orch
	return p, nil
}

func (p *pipeline) close() {
	if p.history != nil {
		_ = p.history.Close()
	}
}
