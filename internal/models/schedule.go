package models

import (
	"strings"
	"time"
)

// DefaultTimezone is used when a schedule does not name one.
const DefaultTimezone = "Asia/Seoul"

// Schedule describes a recurring job registration
type Schedule struct {
	Name           string                 `json:"name"`
	Type           JobType                `json:"job_type"`
	Description    string                 `json:"description,omitempty"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
	CronExpression string                 `json:"cron_expression"`
	Timezone       string                 `json:"timezone,omitempty"`
	Enabled        bool                   `json:"enabled"`
	MaxInstances   int                    `json:"max_instances,omitempty"` // Defaults to 1
}

// Validate checks the schedule and applies defaults in place
func (s *Schedule) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "schedule name is required"}
	}
	if !s.Type.IsValid() {
		return &ValidationError{Field: "job_type", Message: "invalid job type: " + string(s.Type)}
	}
	if fields := strings.Fields(s.CronExpression); len(fields) != 5 {
		return &ValidationError{
			Field:   "cron_expression",
			Message: "cron expression must have exactly 5 fields (minute hour day month weekday)",
		}
	}
	if s.MaxInstances < 0 {
		return &ValidationError{Field: "max_instances", Message: "max instances cannot be negative"}
	}
	if s.MaxInstances == 0 {
		s.MaxInstances = 1
	}
	if s.Timezone == "" {
		s.Timezone = DefaultTimezone
	}
	return nil
}

// ScheduleInfo is the read view of a registered schedule
type ScheduleInfo struct {
	Name           string                 `json:"name"`
	Type           JobType                `json:"job_type"`
	Description    string                 `json:"description,omitempty"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
	CronExpression string                 `json:"cron_expression"`
	Timezone       string                 `json:"timezone"`
	Enabled        bool                   `json:"enabled"`
	MaxInstances   int                    `json:"max_instances"`
	NextRun        *time.Time             `json:"next_run,omitempty"`
}

// SchedulerHealth reports the scheduler's current state
type SchedulerHealth struct {
	Status           string     `json:"status"`
	Running          bool       `json:"running"`
	TotalSchedules   int        `json:"total_schedules"`
	EnabledSchedules int        `json:"enabled_schedules"`
	NextRun          *time.Time `json:"next_run,omitempty"`
}
