package worker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/redflag/internal/bus"
	"github.com/opensource-finance/redflag/internal/domain"
	"github.com/opensource-finance/redflag/internal/report"
	"github.com/opensource-finance/redflag/internal/repository"
)

func setup(t *testing.T) (*bus.ChannelBus, domain.Repository, *Worker) {
	t.Helper()

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "worker.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	w := NewWorker(eventBus, report.NewService(repo, eventBus))
	return eventBus, repo, w
}

func saveAssessment(t *testing.T, repo domain.Repository, id string, status domain.PaymentStatus) {
	t.Helper()
	now := time.Now().UTC()
	a := &domain.Assessment{
		ID: id,
		Input: domain.AssessmentInput{
			TaxYear:    domain.TaxYear2024,
			Industry:   "other",
			Turnover:   20000,
			ReportType: domain.ReportBasic,
		},
		Result: &domain.ScoreResult{
			Score:          35,
			Band:           domain.BandModerate,
			Industry:       "other",
			RulesetVersion: "2024.1",
		},
		PaymentStatus: status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.SaveAssessment(context.Background(), a); err != nil {
		t.Fatalf("SaveAssessment failed: %v", err)
	}
}

func listenReady(t *testing.T, eventBus *bus.ChannelBus) <-chan domain.AssessmentEvent {
	t.Helper()
	ch := make(chan domain.AssessmentEvent, 4)
	_, err := eventBus.Subscribe(context.Background(), domain.TopicReportReady, func(ctx context.Context, msg *domain.Message) error {
		var ev domain.AssessmentEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return err
		}
		ch <- ev
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	return ch
}

func request(t *testing.T, eventBus *bus.ChannelBus, id string) {
	t.Helper()
	payload, _ := json.Marshal(domain.AssessmentEvent{AssessmentID: id})
	if err := eventBus.Publish(context.Background(), domain.TopicReportRequested, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
}

func TestWorkerStartAndStop(t *testing.T) {
	_, _, w := setup(t)

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stats := w.GetStats()
	if stats.SubscriptionCount != 1 {
		t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
	}
	if stats.Topics[0] != domain.TopicReportRequested {
		t.Errorf("expected topic %s, got %s", domain.TopicReportRequested, stats.Topics[0])
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if n := w.GetStats().SubscriptionCount; n != 0 {
		t.Errorf("expected 0 subscriptions after stop, got %d", n)
	}
}

func TestWorkerGeneratesReport(t *testing.T) {
	eventBus, repo, w := setup(t)
	saveAssessment(t, repo, "a-paid", domain.PaymentPaid)

	ready := listenReady(t, eventBus)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	request(t, eventBus, "a-paid")

	select {
	case ev := <-ready:
		if ev.Error != "" {
			t.Fatalf("unexpected error: %s", ev.Error)
		}
		if ev.AssessmentID != "a-paid" || ev.Score != 35 || ev.Band != domain.BandModerate {
			t.Errorf("unexpected ready event: %+v", ev)
		}
		if ev.ReportType != domain.ReportBasic {
			t.Errorf("expected report type %s, got %s", domain.ReportBasic, ev.ReportType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for report ready")
	}

	rep, err := repo.GetReport(context.Background(), "a-paid")
	if err != nil {
		t.Fatalf("report was not stored: %v", err)
	}
	if rep.Document.Score != 35 {
		t.Errorf("expected stored score 35, got %d", rep.Document.Score)
	}
}

func TestWorkerPublishesFailure(t *testing.T) {
	eventBus, repo, w := setup(t)
	saveAssessment(t, repo, "a-unpaid", domain.PaymentPending)

	ready := listenReady(t, eventBus)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	request(t, eventBus, "a-unpaid")

	select {
	case ev := <-ready:
		if ev.Error == "" {
			t.Error("expected error for unpaid assessment")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for report ready")
	}

	if _, err := repo.GetReport(context.Background(), "a-unpaid"); err == nil {
		t.Error("no report should be stored for an unpaid assessment")
	}
}

func TestWorkerRequestReply(t *testing.T) {
	eventBus, repo, w := setup(t)
	saveAssessment(t, repo, "a-sync", domain.PaymentPaid)

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload, _ := json.Marshal(domain.AssessmentEvent{AssessmentID: "a-sync"})
	reply, err := eventBus.Request(ctx, domain.TopicReportRequested, payload)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var ev domain.AssessmentEvent
	if err := json.Unmarshal(reply, &ev); err != nil {
		t.Fatalf("bad reply: %v", err)
	}
	if ev.AssessmentID != "a-sync" || ev.Error != "" {
		t.Errorf("unexpected reply: %+v", ev)
	}
}

func TestWorkerIgnoresMalformedPayload(t *testing.T) {
	eventBus, _, w := setup(t)

	ready := listenReady(t, eventBus)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := eventBus.Publish(context.Background(), domain.TopicReportRequested, []byte("not json")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case ev := <-ready:
		t.Errorf("expected no ready event, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWorkersShareRequests(t *testing.T) {
	eventBus, repo, w1 := setup(t)
	w2 := NewWorker(eventBus, report.NewService(repo, eventBus))
	saveAssessment(t, repo, "a-shared", domain.PaymentPaid)

	ready := listenReady(t, eventBus)
	for _, w := range []*Worker{w1, w2} {
		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()
	}

	request(t, eventBus, "a-shared")

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for report ready")
	}
	select {
	case ev := <-ready:
		t.Errorf("request handled twice, second event %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
