package usecase

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/fantasy-roster/internal/domain/jobscheduler"
	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
	"github.com/riskibarqy/fantasy-roster/internal/domain/snapshot"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
)

type JobQueue interface {
	Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error
}

type noopJobQueue struct{}

func (noopJobQueue) Enqueue(_ context.Context, _ string, _ any, _ time.Duration, _ string) error {
	return nil
}

func NewNoopJobQueue() JobQueue {
	return noopJobQueue{}
}

const jobScheduleName = "schedule"

func JobPath(jobName string) string {
	return "/v1/internal/jobs/" + jobName
}

type JobOrchestratorConfig struct {
	ScheduleInterval time.Duration
	RepairInterval   time.Duration
	WaiverRunHourUTC int
	Workers          int
}

type JobSyncInput struct {
	LeagueID string
	Force    bool
}

type JobSyncResult struct {
	Mode             string   `json:"mode"`
	LeagueCount      int      `json:"league_count"`
	QueuedCount      int      `json:"queued_count"`
	FailedCount      int      `json:"failed_count"`
	QueuedOperations []string `json:"queued_operations"`
}

type dayLockReader interface {
	GetDayLock(ctx context.Context, leagueID string, day time.Time) (snapshot.DayLock, bool, error)
}

// JobOrchestratorService fans scheduled league work out to the job queue.
// Each league's jobs are independent so one slow or failing league never
// holds back another.
type JobOrchestratorService struct {
	leagueRepo   league.Repository
	dayLocks     dayLockReader
	queue        JobQueue
	dispatchRepo jobscheduler.Repository
	cfg          JobOrchestratorConfig
	logger       *logging.Logger
	now          func() time.Time
}

var dedupUnsafeCharRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func NewJobOrchestratorService(
	leagueRepo league.Repository,
	dayLocks dayLockReader,
	queue JobQueue,
	dispatchRepo jobscheduler.Repository,
	cfg JobOrchestratorConfig,
	logger *logging.Logger,
) *JobOrchestratorService {
	if queue == nil {
		queue = NewNoopJobQueue()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ScheduleInterval <= 0 {
		cfg.ScheduleInterval = 15 * time.Minute
	}
	if cfg.RepairInterval <= 0 {
		cfg.RepairInterval = time.Hour
	}
	if cfg.WaiverRunHourUTC < 0 || cfg.WaiverRunHourUTC > 23 {
		cfg.WaiverRunHourUTC = 8
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	return &JobOrchestratorService{
		leagueRepo:   leagueRepo,
		dayLocks:     dayLocks,
		queue:        queue,
		dispatchRepo: dispatchRepo,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

type scheduledJob struct {
	name     string
	leagueID string
	delay    time.Duration
	bucket   time.Duration
	payload  map[string]any
}

// RunWaiverSchedule queues the next waiver run, wire sweep, snapshot repair
// and day lock for every selected league, then queues itself again.
func (s *JobOrchestratorService) RunWaiverSchedule(ctx context.Context, input JobSyncInput) (JobSyncResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobOrchestratorService.RunWaiverSchedule")
	defer span.End()

	leagues, err := s.pickLeagues(ctx, input.LeagueID)
	if err != nil {
		return JobSyncResult{}, err
	}

	now := s.now().UTC()
	jobs := make([]scheduledJob, 0, len(leagues)*4+1)
	for _, item := range leagues {
		leagueJobs, err := s.planLeague(ctx, item, input.Force, now)
		if err != nil {
			return JobSyncResult{}, err
		}
		jobs = append(jobs, leagueJobs...)
	}
	if strings.TrimSpace(input.LeagueID) == "" {
		jobs = append(jobs, scheduledJob{
			name:   jobScheduleName,
			delay:  s.cfg.ScheduleInterval,
			bucket: s.cfg.ScheduleInterval,
		})
	}

	result := JobSyncResult{
		Mode:             "waiver-schedule",
		LeagueCount:      len(leagues),
		QueuedOperations: make([]string, 0, len(jobs)),
	}
	queued, failed, err := s.dispatch(ctx, jobs, now)
	if err != nil {
		return JobSyncResult{}, err
	}
	result.QueuedOperations = queued
	result.QueuedCount = len(queued)
	result.FailedCount = failed
	if failed > 0 {
		s.logger.WarnContext(ctx, "some scheduled jobs failed to enqueue",
			"queued", result.QueuedCount,
			"failed", failed,
		)
	}
	return result, nil
}

// MarkDispatchCompleted records the end of a queued job so the dispatch
// history shows whether it ran.
func (s *JobOrchestratorService) MarkDispatchCompleted(ctx context.Context, dispatchID, jobName, leagueID string, runErr error) {
	event := jobscheduler.DispatchEvent{
		DispatchID: strings.TrimSpace(dispatchID),
		JobName:    jobName,
		JobPath:    JobPath(jobName),
		LeagueID:   leagueID,
		Status:     jobscheduler.StatusCompleted,
		OccurredAt: s.now().UTC(),
	}
	if runErr != nil {
		event.Status = jobscheduler.StatusFailed
		event.ErrorMessage = runErr.Error()
	}
	s.recordDispatchEvent(ctx, event)
}

func (s *JobOrchestratorService) ListDispatches(ctx context.Context, leagueID string, limit int) ([]jobscheduler.DispatchEvent, error) {
	if s.dispatchRepo == nil {
		return []jobscheduler.DispatchEvent{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	items, err := s.dispatchRepo.ListRecent(ctx, strings.TrimSpace(leagueID), limit)
	if err != nil {
		return nil, fmt.Errorf("list job dispatches: %w", err)
	}
	return items, nil
}

func (s *JobOrchestratorService) planLeague(ctx context.Context, item league.League, force bool, now time.Time) ([]scheduledJob, error) {
	day := 24 * time.Hour
	waiverDelay := s.nextWaiverRunDelay(now)
	if force {
		waiverDelay = 0
	}

	jobs := []scheduledJob{
		{name: jobscheduler.JobProcessWaivers, leagueID: item.ID, delay: waiverDelay, bucket: day},
		{name: jobscheduler.JobClearWaivers, leagueID: item.ID, delay: waiverDelay, bucket: day},
		{name: jobscheduler.JobRepairSnapshots, leagueID: item.ID, delay: 0, bucket: s.cfg.RepairInterval},
	}

	if s.dayLocks == nil {
		return jobs, nil
	}
	today := snapshot.Day(now)
	dayLock, exists, err := s.dayLocks.GetDayLock(ctx, item.ID, today)
	if err != nil {
		return nil, fmt.Errorf("get day lock league=%s: %w", item.ID, err)
	}
	if exists && dayLock.LockedAt == nil && !dayLock.LocksAt.IsZero() {
		delay := dayLock.LocksAt.Sub(now)
		if delay < 0 {
			delay = 0
		}
		jobs = append(jobs, scheduledJob{
			name:     jobscheduler.JobLockDay,
			leagueID: item.ID,
			delay:    delay,
			bucket:   day,
			payload:  map[string]any{"day": today.Format(time.DateOnly)},
		})
	}
	return jobs, nil
}

func (s *JobOrchestratorService) dispatch(ctx context.Context, jobs []scheduledJob, now time.Time) ([]string, int, error) {
	if len(jobs) == 0 {
		return []string{}, 0, nil
	}

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return nil, 0, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	results := make(chan string, len(jobs))
	var failed atomic.Int32
	var workers sync.WaitGroup
	for _, job := range jobs {
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			if err := s.enqueue(ctx, job, now); err != nil {
				failed.Add(1)
				s.logger.ErrorContext(ctx, "enqueue scheduled job failed",
					"job", job.name,
					"league_id", job.leagueID,
					"error", err,
				)
				return
			}
			op := job.name
			if job.leagueID != "" {
				op += ":" + job.leagueID
			}
			results <- op
		}); err != nil {
			workers.Done()
			return nil, 0, fmt.Errorf("submit task to worker pool: %w", err)
		}
	}

	workers.Wait()
	close(results)

	queued := make([]string, 0, len(jobs))
	for op := range results {
		queued = append(queued, op)
	}
	sort.Strings(queued)
	return queued, int(failed.Load()), nil
}

func (s *JobOrchestratorService) enqueue(ctx context.Context, job scheduledJob, now time.Time) error {
	segment := job.leagueID
	if segment == "" {
		segment = "all"
	}
	dedupID := dedupKey(job.name, segment, now.Add(job.delay), job.bucket)
	payload := map[string]any{"dispatch_id": dedupID}
	if job.leagueID != "" {
		payload["league_id"] = job.leagueID
	}
	for key, value := range job.payload {
		payload[key] = value
	}

	path := JobPath(job.name)
	event := jobscheduler.DispatchEvent{
		DispatchID: dedupID,
		JobName:    job.name,
		JobPath:    path,
		LeagueID:   job.leagueID,
		Status:     jobscheduler.StatusSent,
		Payload:    payload,
		OccurredAt: now.UTC(),
	}
	if err := s.queue.Enqueue(ctx, path, payload, job.delay, dedupID); err != nil {
		event.Status = jobscheduler.StatusFailed
		event.ErrorMessage = err.Error()
		s.recordDispatchEvent(ctx, event)
		return fmt.Errorf("enqueue %s league=%s: %w", job.name, job.leagueID, err)
	}
	s.recordDispatchEvent(ctx, event)
	return nil
}

func (s *JobOrchestratorService) nextWaiverRunDelay(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.WaiverRunHourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

func (s *JobOrchestratorService) pickLeagues(ctx context.Context, leagueID string) ([]league.League, error) {
	leagueID = strings.TrimSpace(leagueID)
	if leagueID == "" {
		items, err := s.leagueRepo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list leagues for jobs: %w", err)
		}
		return items, nil
	}

	item, exists, err := s.leagueRepo.GetByID(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("get league for jobs: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: league=%s", ErrNotFound, leagueID)
	}

	return []league.League{item}, nil
}

func dedupKey(prefix, leagueID string, at time.Time, bucket time.Duration) string {
	if bucket <= 0 {
		bucket = time.Minute
	}
	slot := at.UTC().Truncate(bucket).Format("20060102T150405Z")
	prefix = sanitizeDedupSegment(prefix)
	leagueID = sanitizeDedupSegment(leagueID)
	return prefix + "-" + leagueID + "-" + slot
}

func sanitizeDedupSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return dedupUnsafeCharRegex.ReplaceAllString(value, "-")
}

func (s *JobOrchestratorService) recordDispatchEvent(ctx context.Context, event jobscheduler.DispatchEvent) {
	if s.dispatchRepo == nil || strings.TrimSpace(event.DispatchID) == "" {
		return
	}
	traceID, spanID := traceMetaFromContext(ctx)
	event.TraceID = traceID
	event.SpanID = spanID
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	if err := s.dispatchRepo.UpsertEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "record job dispatch event failed",
			"dispatch_id", event.DispatchID,
			"status", event.Status,
			"error", err,
		)
	}
}
