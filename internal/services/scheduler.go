package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"docsearch/internal/models"
)

const (
	// DefaultMisfireGrace is how late a fire may run before it is
	// coalesced away instead of executed.
	DefaultMisfireGrace = time.Hour

	triggerTimeout   = 30 * time.Second
	watchPollPeriod  = 2 * time.Second
	watchMaxDuration = 24 * time.Hour
)

type scheduleEntry struct {
	spec       models.Schedule
	entryID    cron.EntryID
	sched      cron.Schedule
	expectedAt time.Time // Next expected fire, for misfire detection
	active     int       // Jobs from this schedule not yet terminal
}

// JobScheduler registers cron schedules that create and execute batch
// jobs through the job manager. Schedules are replaceable by name,
// pausable, and bounded by a per-schedule instance cap.
type JobScheduler struct {
	batch  *BatchService
	cron   *cron.Cron
	logger Logger
	grace  time.Duration

	mu      sync.Mutex
	entries map[string]*scheduleEntry
	running bool
}

// NewJobScheduler creates a scheduler over the given job manager
func NewJobScheduler(batch *BatchService, logger Logger) *JobScheduler {
	if logger == nil {
		logger = &DefaultLogger{}
	}
	return &JobScheduler{
		batch:   batch,
		cron:    cron.New(),
		logger:  logger,
		grace:   DefaultMisfireGrace,
		entries: make(map[string]*scheduleEntry),
	}
}

// NewJobSchedulerWithGrace creates a scheduler with a custom misfire grace.
// A non-positive grace disables misfire coalescing.
func NewJobSchedulerWithGrace(batch *BatchService, logger Logger, grace time.Duration) *JobScheduler {
	s := NewJobScheduler(batch, logger)
	s.grace = grace
	return s
}

// Start begins firing registered schedules
func (s *JobScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("Job scheduler started with %d schedules", len(s.entries))
}

// Stop halts firing and waits for in-flight trigger callbacks
func (s *JobScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Job scheduler stopped")
}

// Schedule registers a recurring job, replacing any schedule of the same name
func (s *JobScheduler) Schedule(spec models.Schedule) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	sched, err := cron.ParseStandard(cronExprWithTZ(spec.CronExpression, spec.Timezone))
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec.CronExpression, err)
	}

	name := spec.Name

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[name]; ok {
		s.cron.Remove(existing.entryID)
		s.logger.Info("Replacing schedule %s", name)
	}

	entry := &scheduleEntry{
		spec:       spec,
		sched:      sched,
		expectedAt: sched.Next(time.Now()),
	}
	entry.entryID = s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(name) }))
	s.entries[name] = entry

	s.logger.Info("Scheduled %s (%s) with cron %q tz %s", name, spec.Type, spec.CronExpression, spec.Timezone)
	return nil
}

// Unschedule removes a schedule by name
func (s *JobScheduler) Unschedule(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[name]
	if !ok {
		return false
	}
	s.cron.Remove(entry.entryID)
	delete(s.entries, name)
	s.logger.Info("Unscheduled %s", name)
	return true
}

// Pause disables a schedule without removing it
func (s *JobScheduler) Pause(name string) bool {
	return s.setEnabled(name, false)
}

// Resume re-enables a paused schedule
func (s *JobScheduler) Resume(name string) bool {
	return s.setEnabled(name, true)
}

func (s *JobScheduler) setEnabled(name string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[name]
	if !ok {
		return false
	}
	entry.spec.Enabled = enabled
	s.logger.Info("Schedule %s enabled=%v", name, enabled)
	return true
}

// List returns every registered schedule with its next fire time
func (s *JobScheduler) List() []models.ScheduleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	infos := make([]models.ScheduleInfo, 0, len(s.entries))
	for _, entry := range s.entries {
		next := entry.sched.Next(now)
		info := models.ScheduleInfo{
			Name:           entry.spec.Name,
			Type:           entry.spec.Type,
			Description:    entry.spec.Description,
			Parameters:     entry.spec.Parameters,
			CronExpression: entry.spec.CronExpression,
			Timezone:       entry.spec.Timezone,
			Enabled:        entry.spec.Enabled,
			MaxInstances:   entry.spec.MaxInstances,
		}
		if !next.IsZero() {
			info.NextRun = &next
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// RunImmediately triggers a registered schedule's job right now with
// high priority, bypassing its cron timing. Returns the created job id.
func (s *JobScheduler) RunImmediately(name string) (string, error) {
	s.mu.Lock()
	entry, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("unknown schedule: %s", name)
	}
	spec := entry.spec
	s.mu.Unlock()

	jobName := fmt.Sprintf("%s - Manual Run - %s", spec.Name, time.Now().Format("2006-01-02 15:04:05"))
	jobID, err := s.triggerJob(spec, jobName, models.JobPriorityHigh)
	if err != nil {
		return "", err
	}

	s.logger.Info("Manually triggered schedule %s as job %s", name, jobID)
	return jobID, nil
}

// Health reports the scheduler's state and the earliest upcoming fire
func (s *JobScheduler) Health() models.SchedulerHealth {
	s.mu.Lock()
	defer s.mu.Unlock()

	health := models.SchedulerHealth{
		Running:        s.running,
		TotalSchedules: len(s.entries),
	}
	if s.running {
		health.Status = "healthy"
	} else {
		health.Status = "stopped"
	}

	now := time.Now()
	var earliest time.Time
	for _, entry := range s.entries {
		if entry.spec.Enabled {
			health.EnabledSchedules++
			if next := entry.sched.Next(now); !next.IsZero() && (earliest.IsZero() || next.Before(earliest)) {
				earliest = next
			}
		}
	}
	if !earliest.IsZero() {
		health.NextRun = &earliest
	}
	return health
}

// SetupDefaultSchedules registers the stock maintenance schedules against
// the given document index: nightly index maintenance, weekly job record
// cleanup, and a monthly vector regeneration that ships disabled. An empty
// index falls back to DefaultIndexName.
func (s *JobScheduler) SetupDefaultSchedules(index string) error {
	if index == "" {
		index = DefaultIndexName
	}

	if err := s.Schedule(models.Schedule{
		Name:        "daily_index_maintenance",
		Type:        models.JobTypeIndexMaintenance,
		Description: "Nightly refresh and segment merge of the document index",
		Parameters: map[string]interface{}{
			"index_names": []string{index},
			"operations":  []string{"refresh", "optimize"},
		},
		CronExpression: "0 2 * * *",
		Enabled:        true,
	}); err != nil {
		return err
	}

	if err := s.ScheduleCleanup("0 3 * * 0", 30); err != nil {
		return err
	}

	if err := s.Schedule(models.Schedule{
		Name:        "monthly_vector_regeneration",
		Type:        models.JobTypeVectorGeneration,
		Description: "Full re-embedding of the document index",
		Parameters: map[string]interface{}{
			"index_name": index,
			"batch_size": 50,
		},
		CronExpression: "0 4 1 * *",
		Enabled:        false,
	}); err != nil {
		return err
	}

	return nil
}

// ScheduleCleanup registers a recurring purge of old job records.
// Cleanup acts on the job store directly rather than going through a
// job type, so it bypasses the schedule registry.
func (s *JobScheduler) ScheduleCleanup(cronExpr string, daysToKeep int) error {
	_, err := s.cron.AddFunc(cronExprWithTZ(cronExpr, models.DefaultTimezone), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		removed, err := s.batch.CleanupOldJobs(ctx, daysToKeep)
		if err != nil {
			s.logger.Error("Scheduled job cleanup failed: %v", err)
			return
		}
		s.logger.Info("Scheduled cleanup removed %d job records", removed)
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// fire handles one cron tick for a named schedule
func (s *JobScheduler) fire(name string) {
	s.mu.Lock()
	entry, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return
	}

	spec := entry.spec
	expected := entry.expectedAt
	now := time.Now()
	entry.expectedAt = entry.sched.Next(now)

	if !spec.Enabled {
		s.mu.Unlock()
		s.logger.Debug("Schedule %s disabled, skipping run", name)
		return
	}
	if s.grace > 0 && !expected.IsZero() && now.Sub(expected) > s.grace {
		s.mu.Unlock()
		s.logger.Warn("Coalescing misfired run of schedule %s (%s late)", name, now.Sub(expected).Round(time.Second))
		return
	}
	if entry.active >= spec.MaxInstances {
		s.mu.Unlock()
		s.logger.Warn("Schedule %s at max instances (%d), skipping run", name, spec.MaxInstances)
		return
	}
	entry.active++
	s.mu.Unlock()

	jobName := fmt.Sprintf("%s - %s", spec.Name, now.Format("2006-01-02 15:04:05"))
	jobID, err := s.triggerJob(spec, jobName, models.JobPriorityNormal)
	if err != nil {
		s.logger.Error("Scheduled run of %s failed: %v", name, err)
		s.releaseInstance(name)
		return
	}

	s.logger.Info("Schedule %s started job %s", name, jobID)
	go s.watchJob(name, jobID)
}

// triggerJob creates and executes a job for a schedule
func (s *JobScheduler) triggerJob(spec models.Schedule, jobName string, priority models.JobPriority) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
	defer cancel()

	job, err := s.batch.CreateJob(ctx, models.JobCreate{
		Type:        spec.Type,
		Name:        jobName,
		Description: spec.Description,
		Parameters:  spec.Parameters,
		Priority:    priority,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	started, err := s.batch.ExecuteJob(ctx, job.ID)
	if err != nil {
		return "", fmt.Errorf("failed to execute job %s: %w", job.ID, err)
	}
	if !started {
		return "", fmt.Errorf("job %s did not start", job.ID)
	}
	return job.ID, nil
}

// watchJob polls the job until it reaches a terminal state, then frees
// the schedule's instance slot
func (s *JobScheduler) watchJob(name, jobID string) {
	defer s.releaseInstance(name)

	deadline := time.Now().Add(watchMaxDuration)
	ticker := time.NewTicker(watchPollPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if time.Now().After(deadline) {
			s.logger.Warn("Gave up watching job %s for schedule %s", jobID, name)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		job, err := s.batch.GetJob(ctx, jobID)
		cancel()
		if err != nil {
			continue
		}
		if job == nil || job.Status.IsTerminal() {
			return
		}
	}
}

func (s *JobScheduler) releaseInstance(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[name]; ok && entry.active > 0 {
		entry.active--
	}
}

func cronExprWithTZ(expr, tz string) string {
	if tz == "" {
		return expr
	}
	return "CRON_TZ=" + tz + " " + expr
}
