package schedule

import (
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler wraps gocron for the worker's periodic jobs (currently the
// orphan reaper).
type Scheduler struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Scheduler{scheduler: s}
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop waits for running jobs and stops scheduling.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Cron schedules job on a cron expression, tagged for later removal.
func (s *Scheduler) Cron(tag, cronExpr string, job func() error) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(job)
	return err
}

// Every schedules job at a fixed interval.
func (s *Scheduler) Every(tag string, interval time.Duration, job func() error) error {
	_, err := s.scheduler.Every(interval).Tag(tag).Do(job)
	return err
}

// Remove drops a scheduled job by tag.
func (s *Scheduler) Remove(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}
