package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"counselmeet/internal/clock"
	"counselmeet/internal/models"
	"counselmeet/internal/repository"
	"counselmeet/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReconcileReport counts what one tick did
type ReconcileReport struct {
	GraceResolved   int `json:"grace_resolved"`
	OverdueResolved int `json:"overdue_resolved"`
	Expired         int `json:"expired"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
}

func (r ReconcileReport) counts() map[string]int {
	return map[string]int{
		"grace_resolved":   r.GraceResolved,
		"overdue_resolved": r.OverdueResolved,
		"expired":          r.Expired,
		"skipped":          r.Skipped,
		"failed":           r.Failed,
	}
}

// Reconciler finalizes confirmed meetings whose window has passed and expires
// selections the counselor never answered. Every write it makes is a
// conditional transition, so replicas may run it concurrently.
type Reconciler struct {
	meetings     *MeetingService
	clock        clock.Clock
	interval     time.Duration
	overdueAfter time.Duration
	batchSize    int
	tickTimeout  time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewReconciler creates the background reconciler.
//
// Parameters:
//   - meetings: the state machine whose transitions it drives
//   - interval: how often Tick runs once started (e.g. 5 minutes)
//   - overdueAfter: how long after the start an ungraced confirmed meeting is closed
//   - batchSize: upper bound of meetings loaded per query
func NewReconciler(meetings *MeetingService, interval, overdueAfter time.Duration, batchSize int) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if overdueAfter <= 0 {
		overdueAfter = time.Hour
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Reconciler{
		meetings:     meetings,
		clock:        meetings.clock,
		interval:     interval,
		overdueAfter: overdueAfter,
		batchSize:    batchSize,
		tickTimeout:  2 * time.Minute,
	}
}

// Start begins the background loop. Calling Start twice is a no-op.
func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopCh != nil {
		return
	}
	r.stopCh = make(chan struct{})
	r.wg.Add(1)
	go r.run(r.stopCh)
	logger.Infof("Meeting reconciler started (interval %s)", r.interval)
}

// Stop signals the loop to stop and waits for the running tick
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if r.stopCh == nil {
		r.mu.Unlock()
		return
	}
	close(r.stopCh)
	r.stopCh = nil
	r.mu.Unlock()
	r.wg.Wait()
	logger.Infof("Meeting reconciler stopped")
}

func (r *Reconciler) run(stopCh chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.tickTimeout)
			r.Tick(ctx)
			cancel()
		}
	}
}

// Tick runs all passes once
func (r *Reconciler) Tick(ctx context.Context) ReconcileReport {
	started := time.Now()
	var report ReconcileReport

	r.resolveGraceExpired(ctx, &report)
	r.resolveOverdue(ctx, &report)
	r.expireUnanswered(ctx, &report)

	logger.LogReconcileRun(report.counts(), time.Since(started))
	return report
}

func (r *Reconciler) resolveGraceExpired(ctx context.Context, report *ReconcileReport) {
	due, err := r.meetings.meetings.FindGraceExpired(ctx, r.clock.Now(), r.batchSize)
	if err != nil {
		logger.LogError(err, "reconciler: load grace-expired meetings", nil)
		report.Failed++
		return
	}
	for _, m := range due {
		if r.resolve(ctx, m, m.PresenceOutcome(), report) {
			report.GraceResolved++
		}
	}
}

func (r *Reconciler) resolveOverdue(ctx context.Context, report *ReconcileReport) {
	now := r.clock.Now()
	// Local dates run at most a day ahead of UTC.
	horizon := now.UTC().AddDate(0, 0, 1).Format(models.DateLayout)
	// Meetings dated tomorrow that are not due yet share the page with
	// overdue ones, so walk every page.
	after := primitive.NilObjectID
	for ctx.Err() == nil {
		page, err := r.meetings.meetings.FindUngracedConfirmed(ctx, horizon, after, r.batchSize)
		if err != nil {
			logger.LogError(err, "reconciler: load confirmed meetings", nil)
			report.Failed++
			return
		}
		for _, m := range page {
			r.resolveIfOverdue(ctx, m, now, report)
		}
		if r.batchSize <= 0 || len(page) < r.batchSize {
			return
		}
		after = page[len(page)-1].ID
	}
}

func (r *Reconciler) resolveIfOverdue(ctx context.Context, m *models.Meeting, now time.Time, report *ReconcileReport) {
	scheduledAt, err := m.ScheduledAt()
	if err != nil {
		logger.WithField("meeting_id", m.ID.Hex()).
			WithField("error", err.Error()).
			Warn("reconciler: skipping meeting with malformed schedule")
		report.Skipped++
		return
	}
	if !now.After(scheduledAt.Add(r.overdueAfter)) {
		return
	}
	outcome := models.StatusAbandoned
	if m.ClientJoined && m.CounselorJoined {
		outcome = models.StatusCompleted
	}
	if r.resolve(ctx, m, outcome, report) {
		report.OverdueResolved++
	}
}

func (r *Reconciler) expireUnanswered(ctx context.Context, report *ReconcileReport) {
	due, err := r.meetings.meetings.FindAutoExpired(ctx, r.clock.Now(), r.batchSize)
	if err != nil {
		logger.LogError(err, "reconciler: load unanswered selections", nil)
		report.Failed++
		return
	}
	for _, m := range due {
		updated, err := r.meetings.expire(ctx, m)
		if err != nil {
			r.recordFailure(err, m, report)
			continue
		}
		r.meetings.notifier.Notify(updated.ClientID, TemplateMeetingCancelled, r.meetings.notificationData(updated))
		r.meetings.notifier.Notify(updated.CounselorID, TemplateMeetingCancelled, r.meetings.notificationData(updated))
		report.Expired++
	}
}

// resolve finalizes a confirmed meeting into outcome. It reports false when
// the meeting was skipped or another writer got there first.
func (r *Reconciler) resolve(ctx context.Context, m *models.Meeting, outcome models.MeetingStatus, report *ReconcileReport) bool {
	event := EventMeetingResolved
	if outcome == models.StatusCompleted {
		event = EventMeetingCompleted
	}
	updated, err := r.meetings.finalize(ctx, m, []models.MeetingStatus{models.StatusConfirmed}, outcome, repository.MeetingChanges{}, event)
	if err != nil {
		r.recordFailure(err, m, report)
		return false
	}
	for _, recipient := range []string{updated.ClientID, updated.CounselorID} {
		r.meetings.notifier.Notify(recipient, TemplateMeetingResolved, r.meetings.notificationData(updated))
	}
	return true
}

func (r *Reconciler) recordFailure(err error, m *models.Meeting, report *ReconcileReport) {
	if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound) {
		report.Skipped++
		return
	}
	logger.LogError(err, "reconciler: finalize meeting", map[string]interface{}{"meeting_id": m.ID.Hex()})
	report.Failed++
}
