// Package worker generates paid reports asynchronously from the EventBus.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/opensource-finance/redflag/internal/bus"
	"github.com/opensource-finance/redflag/internal/domain"
)

// Generator produces and stores the report for one assessment.
type Generator interface {
	Generate(ctx context.Context, assessmentID string) (*domain.Report, error)
}

// Worker consumes report requests and publishes report-ready events.
type Worker struct {
	bus       domain.EventBus
	generator Generator
	timeout   time.Duration

	mu            sync.Mutex
	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a report worker.
func NewWorker(eventBus domain.EventBus, generator Generator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       eventBus,
		generator: generator,
		timeout:   30 * time.Second,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start joins the report worker queue group, so each request is handled
// by one worker across all nodes.
func (w *Worker) Start() error {
	sub, err := w.bus.QueueSubscribe(w.ctx, domain.TopicReportRequested, domain.QueueReportWorkers, w.handleReportRequest)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("report worker started",
		"topic", domain.TopicReportRequested,
		"queue", domain.QueueReportWorkers,
	)
	return nil
}

// handleReportRequest generates one report and announces the outcome on
// the ready topic. Failures are published too so callers can stop waiting.
func (w *Worker) handleReportRequest(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	start := time.Now()

	var req domain.AssessmentEvent
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse report request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	genCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	ready := domain.AssessmentEvent{AssessmentID: req.AssessmentID}

	rep, err := w.generator.Generate(genCtx, req.AssessmentID)
	if err != nil {
		slog.Error("report generation failed",
			"assessment_id", req.AssessmentID,
			"error", err,
		)
		ready.Error = err.Error()
	} else {
		ready.Score = rep.Document.Score
		ready.Band = rep.Document.Band
		ready.ReportType = rep.ReportType
	}

	payload, encErr := json.Marshal(ready)
	if encErr != nil {
		slog.Error("failed to encode report ready",
			"assessment_id", req.AssessmentID,
			"error", encErr,
		)
		return errors.Join(err, encErr)
	}
	if pubErr := w.bus.Publish(ctx, domain.TopicReportReady, payload); pubErr != nil {
		slog.Error("failed to publish report ready",
			"assessment_id", req.AssessmentID,
			"error", pubErr,
		)
	}
	if replyErr := bus.Reply(ctx, w.bus, msg, payload); replyErr != nil {
		slog.Error("failed to reply to report request",
			"assessment_id", req.AssessmentID,
			"error", replyErr,
		)
	}

	slog.Info("report request processed",
		"assessment_id", req.AssessmentID,
		"ok", err == nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return err
}

// Stop unsubscribes and waits for in-flight reports.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil
	w.mu.Unlock()

	w.wg.Wait()

	slog.Info("report worker stopped")
	return nil
}

// Stats describes the worker's subscriptions.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
