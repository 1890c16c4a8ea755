// Package executor runs one monitoring entry end-to-end: fetch activity,
// gate on quota, summarise, deliver, and always record a terminal run —
// a stage failing never stalls the schedule.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/digestloop/core/internal/crypto"
	"github.com/digestloop/core/internal/deliver"
	"github.com/digestloop/core/internal/domain"
	"github.com/digestloop/core/internal/fetch"
	"github.com/digestloop/core/internal/metrics"
	"github.com/digestloop/core/internal/quota"
	"github.com/digestloop/core/internal/schedule"
	"github.com/digestloop/core/internal/store"
	"github.com/digestloop/core/internal/summarize"
)

// FetcherFactory builds a fetch.Client authenticated with credential — an
// empty credential means "use the process-wide default token".
type FetcherFactory func(credential string) fetch.Client

type Config struct {
	FetchTimeout   time.Duration
	SummaryTimeout time.Duration
	DeliverTimeout time.Duration
	DefaultWindow  time.Duration
}

type Executor struct {
	tenants    store.TenantStore
	repos      store.RepositoryStore
	authors    store.AuthorStore
	runs       store.RunStore
	entries    store.MonitoringStore
	quota      *quota.Gate
	fetcherFor FetcherFactory
	summarizer summarize.Client
	sender     deliver.Sender
	sealer     *crypto.Sealer
	cfg        Config
	logger     *slog.Logger
}

func New(
	tenants store.TenantStore,
	repos store.RepositoryStore,
	authors store.AuthorStore,
	runs store.RunStore,
	entries store.MonitoringStore,
	gate *quota.Gate,
	fetcherFor FetcherFactory,
	summarizer summarize.Client,
	sender deliver.Sender,
	sealer *crypto.Sealer,
	cfg Config,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		tenants:    tenants,
		repos:      repos,
		authors:    authors,
		runs:       runs,
		entries:    entries,
		quota:      gate,
		fetcherFor: fetcherFor,
		summarizer: summarizer,
		sender:     sender,
		sealer:     sealer,
		cfg:        cfg,
		logger:     logger.With("component", "executor"),
	}
}

// RunEntry opens a run for entry, executes the pipeline, and always
// closes the run with a terminal delivery status — a returned error only
// means the run record itself could not be opened, never that a pipeline
// stage failed (that's captured inside the run); a failure to close the run
// is logged. Used by the tick loop. The schedule is advanced here, once the
// run has closed, not by the caller.
func (e *Executor) RunEntry(ctx context.Context, entry *domain.MonitoringEntry, trigger domain.TriggerType) error {
	run, err := e.open(ctx, entry, trigger)
	if err != nil {
		return err
	}
	e.runToCompletion(ctx, entry, run)
	return nil
}

// TriggerAsync opens a manual run and hands it off to a background
// goroutine, returning the run's ID immediately — the caller (the HTTP
// hook surface) polls the run record rather than waiting on the pipeline.
func (e *Executor) TriggerAsync(ctx context.Context, entry *domain.MonitoringEntry) (string, error) {
	run, err := e.open(ctx, entry, domain.TriggerManual)
	if err != nil {
		return "", err
	}
	go e.runToCompletion(context.Background(), entry, run)
	return run.ID, nil
}

func (e *Executor) open(ctx context.Context, entry *domain.MonitoringEntry, trigger domain.TriggerType) (*domain.Run, error) {
	now := time.Now()
	from, to := fetchWindow(entry, now, e.cfg.DefaultWindow)

	run := &domain.Run{
		EntryID:      entry.ID,
		TenantID:     entry.TenantID,
		AuthorID:     entry.AuthorID,
		RepositoryID: entry.RepositoryID,
		Trigger:      trigger,
		ScheduledAt:  now,
		StartedAt:    now,
		FetchFrom:    from,
		FetchTo:      to,
		Note:         entry.Note,
		Delivery: domain.Delivery{
			Status:     domain.DeliveryPending,
			Recipients: entry.Recipients,
		},
	}

	opened, err := e.runs.Open(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("open run: %w", err)
	}
	return opened, nil
}

func (e *Executor) runToCompletion(ctx context.Context, entry *domain.MonitoringEntry, run *domain.Run) {
	metrics.RunsInFlight.Inc()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("run panicked", "run_id", run.ID, "panic", r)
			run.Delivery.Status = domain.DeliveryFailed
			run.Delivery.FailureReason = fmt.Sprintf("internal error: %v", r)
		}
		completed := time.Now()
		run.CompletedAt = &completed
		if closeErr := e.runs.Complete(ctx, run); closeErr != nil {
			e.logger.Error("complete run failed", "run_id", run.ID, "error", closeErr)
		}
		metrics.RunsInFlight.Dec()
		metrics.RunsCompletedTotal.WithLabelValues(string(run.Delivery.Status)).Inc()

		next, ok := schedule.NextFiring(entry.Schedule, run.ScheduledAt)
		var nextPtr *time.Time
		if ok {
			nextPtr = &next
		}
		if advErr := e.entries.Advance(ctx, entry.ID, run.ScheduledAt, nextPtr); advErr != nil {
			e.logger.Error("advance entry schedule failed", "entry_id", entry.ID, "error", advErr)
		}
	}()

	e.execute(ctx, entry, run)
}

func (e *Executor) execute(ctx context.Context, entry *domain.MonitoringEntry, run *domain.Run) {
	repo, err := e.repos.GetByID(ctx, entry.RepositoryID)
	if err != nil {
		e.fail(run, err)
		return
	}
	author, err := e.authors.GetByID(ctx, entry.AuthorID)
	if err != nil {
		e.fail(run, err)
		return
	}

	token := ""
	if repo.CredentialCiphertext != "" {
		token, err = e.sealer.Open(repo.ID, repo.CredentialCiphertext)
		if err != nil {
			e.fail(run, fmt.Errorf("decrypt repository credential: %w", err))
			return
		}
	}
	fetcher := e.fetcherFor(token)

	fetchStart := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	prs, err := fetcher.ListActivity(fetchCtx, repo, author.Username, run.FetchFrom, run.FetchTo)
	cancel()
	observeStage("fetch", err, fetchStart)
	if err != nil {
		e.logger.Warn("fetch stage failed", "run_id", run.ID, "error", err)
		e.fail(run, err)
		if errors.Is(err, domain.ErrVCSAuth) {
			if setErr := e.repos.SetStatus(ctx, repo.ID, domain.RepoTokenError); setErr != nil {
				e.logger.Error("mark repository token_error failed", "repository_id", repo.ID, "error", setErr)
			}
		}
		return
	}

	run.PRCount = len(prs)
	run.PRs = toPRRefs(prs)
	run.HasActivity = len(prs) > 0

	if !run.HasActivity {
		e.skip(run, domain.ErrNoActivity)
		return
	}
	if len(entry.Recipients) == 0 {
		e.skip(run, domain.ErrNoRecipients)
		return
	}

	tenant, err := e.tenants.GetByID(ctx, entry.TenantID)
	if err != nil {
		e.fail(run, err)
		return
	}
	if err := e.quota.Consume(ctx, tenant, domain.QuotaEmail, time.Now()); err != nil {
		if errors.Is(err, domain.ErrQuotaReached) {
			metrics.QuotaReachedTotal.WithLabelValues(string(domain.QuotaEmail)).Inc()
		}
		e.skip(run, err)
		return
	}

	summaryStart := time.Now()
	summaryCtx, cancel := context.WithTimeout(ctx, e.cfg.SummaryTimeout)
	summary, err := e.summarizer.Summarize(summaryCtx, summarize.Request{
		RepositoryFullName: repo.FullName(),
		AuthorUsername:     author.Username,
		Note:               entry.Note,
		PullRequests:       prs,
	})
	cancel()
	observeStage("summarize", err, summaryStart)
	if err != nil {
		e.logger.Warn("summarize stage failed", "run_id", run.ID, "error", err)
		e.fail(run, err)
		e.quota.Release(ctx, tenant.ID, domain.QuotaEmail)
		return
	}
	run.Summary = &summary

	subject := fmt.Sprintf("Activity digest: %s on %s", author.Username, repo.FullName())
	body := deliver.RenderHTML(summary)

	deliverStart := time.Now()
	deliverCtx, cancel := context.WithTimeout(ctx, e.cfg.DeliverTimeout)
	err = e.sender.Send(deliverCtx, entry.Recipients, subject, body)
	cancel()
	observeStage("deliver", err, deliverStart)
	if err != nil {
		e.logger.Warn("deliver stage failed", "run_id", run.ID, "error", err)
		e.fail(run, fmt.Errorf("%w: %s", domain.ErrDeliveryFail, err))
		e.quota.Release(ctx, tenant.ID, domain.QuotaEmail)
		return
	}

	sentAt := time.Now()
	run.Delivery.Status = domain.DeliverySent
	run.Delivery.SentAt = &sentAt
}

func observeStage(stage string, err error, start time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.StageDuration.WithLabelValues(stage, outcome).Observe(time.Since(start).Seconds())
}

func (e *Executor) fail(run *domain.Run, err error) {
	run.Delivery.Status = domain.DeliveryFailed
	run.Delivery.FailureReason = err.Error()
}

func (e *Executor) skip(run *domain.Run, reason error) {
	run.Delivery.Status = domain.DeliverySkipped
	run.Delivery.FailureReason = reason.Error()
}

func fetchWindow(entry *domain.MonitoringEntry, now time.Time, defaultWindow time.Duration) (time.Time, time.Time) {
	if entry.WindowPolicy == domain.WindowExplicitRange && entry.ExplicitFrom != nil && entry.ExplicitTo != nil {
		return *entry.ExplicitFrom, *entry.ExplicitTo
	}
	from := now.Add(-defaultWindow)
	if entry.LastRunAt != nil {
		from = *entry.LastRunAt
	}
	return from, now
}

func toPRRefs(prs []fetch.PullRequest) []domain.PRRef {
	refs := make([]domain.PRRef, len(prs))
	for i, pr := range prs {
		refs[i] = domain.PRRef{Number: pr.Number, URL: pr.URL}
	}
	return refs
}
