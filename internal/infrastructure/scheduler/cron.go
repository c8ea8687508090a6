package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/ports"
)

// CronScheduler runs keyed jobs on standard five-field cron expressions.
type CronScheduler struct {
	mu       sync.Mutex
	cron     *rcron.Cron
	loc      *time.Location
	entryMap map[string]entry // job key -> cron entry
	ctx      context.Context
	running  bool
}

type entry struct {
	id       rcron.EntryID
	name     string
	spec     string
	schedule rcron.Schedule
}

var _ ports.JobScheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a stopped scheduler evaluating expressions in loc.
// A nil logger silences the cron engine.
func NewCronScheduler(loc *time.Location, logger *log.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	cronLogger := rcron.DiscardLogger
	if logger != nil {
		cronLogger = rcron.PrintfLogger(logger)
	}
	return &CronScheduler{
		cron: rcron.New(
			rcron.WithLocation(loc),
			rcron.WithLogger(cronLogger),
			rcron.WithChain(rcron.Recover(cronLogger)),
		),
		loc:      loc,
		entryMap: make(map[string]entry),
		ctx:      context.Background(),
	}
}

// Register adds a job, replacing any job already under key.
func (c *CronScheduler) Register(key, name, spec string, handler ports.JobHandler) error {
	if handler == nil {
		return fmt.Errorf("job %s: nil handler", key)
	}
	schedule, err := rcron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("parse cron %q: %w", spec, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entryMap[key]; ok {
		c.cron.Remove(existing.id)
	}
	id := c.cron.Schedule(schedule, rcron.FuncJob(func() {
		handler(c.jobContext())
	}))
	c.entryMap[key] = entry{id: id, name: name, spec: spec, schedule: schedule}
	return nil
}

// Has reports whether a job is registered under key.
func (c *CronScheduler) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entryMap[key]
	return ok
}

// Remove drops the job under key.
func (c *CronScheduler) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.entryMap[key]
	if !ok {
		return false
	}
	c.cron.Remove(existing.id)
	delete(c.entryMap, key)
	return true
}

// Clear drops every job.
func (c *CronScheduler) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, existing := range c.entryMap {
		c.cron.Remove(existing.id)
		delete(c.entryMap, key)
	}
}

// Jobs lists registered jobs sorted by key.
func (c *CronScheduler) Jobs() []domain.ScheduledJob {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().In(c.loc)
	jobs := make([]domain.ScheduledJob, 0, len(c.entryMap))
	for key, e := range c.entryMap {
		next := c.cron.Entry(e.id).Next
		if next.IsZero() {
			next = e.schedule.Next(now)
		}
		jobs = append(jobs, domain.ScheduledJob{
			Key:     key,
			Name:    e.name,
			Spec:    e.spec,
			NextRun: next,
		})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Key < jobs[j].Key })
	return jobs
}

// Running reports whether Start was called without a later Stop.
func (c *CronScheduler) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start begins firing jobs. Handlers receive ctx.
func (c *CronScheduler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.ctx = ctx
	c.cron.Start()
	c.running = true
	return nil
}

// Stop halts firing. Jobs already running are not waited for.
func (c *CronScheduler) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.cron.Stop()
	c.running = false
}

func (c *CronScheduler) jobContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}
