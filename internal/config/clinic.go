package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"dispensary/internal/model"
	"dispensary/internal/slots"

	"gopkg.in/yaml.v3"
)

// HolidayConfig is a date the clinic is closed.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-01-01"
	Name string `yaml:"name"`
}

// ClinicConfig is the root of clinic.yaml.
type ClinicConfig struct {
	Timezone    string          `yaml:"timezone"`     // IANA name, "" = local
	Open        string          `yaml:"open"`         // "09:00"
	Close       string          `yaml:"close"`        // "15:00"
	SlotMinutes int             `yaml:"slot_minutes"` // 5
	WorkDays    []int           `yaml:"work_days"`    // 1=Mon, 7=Sun
	Holidays    []HolidayConfig `yaml:"holidays"`
}

// DefaultClinicConfig is 09:00-15:00 on weekdays with a 5-minute grid.
func DefaultClinicConfig() *ClinicConfig {
	return &ClinicConfig{
		Open:        "09:00",
		Close:       "15:00",
		SlotMinutes: 5,
		WorkDays:    []int{1, 2, 3, 4, 5},
	}
}

// LoadClinicConfig loads and validates the clinic configuration from a YAML file.
func LoadClinicConfig(path string) (*ClinicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clinic config: %w", err)
	}

	cfg := DefaultClinicConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse clinic config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate clinic config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *ClinicConfig) Validate() error {
	_, err := c.Policy()
	return err
}

// Policy builds the slot policy described by the configuration.
func (c *ClinicConfig) Policy() (*slots.Policy, error) {
	loc := time.Local
	if c.Timezone != "" {
		l, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
		loc = l
	}

	open, err := model.ParseClock(c.Open)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	closeAt, err := model.ParseClock(c.Close)
	if err != nil {
		return nil, fmt.Errorf("close: %w", err)
	}
	if closeAt <= open {
		return nil, fmt.Errorf("close %s must be after open %s", c.Close, c.Open)
	}
	if c.SlotMinutes <= 0 || c.SlotMinutes > 24*60 {
		return nil, fmt.Errorf("slot_minutes must be positive, got %d", c.SlotMinutes)
	}

	weekdays := make(map[time.Weekday]bool, len(c.WorkDays))
	for _, d := range c.WorkDays {
		if d < 1 || d > 7 {
			return nil, fmt.Errorf("work_days: %d is not in 1..7", d)
		}
		weekdays[time.Weekday(d%7)] = true
	}
	if len(weekdays) == 0 {
		return nil, fmt.Errorf("work_days must not be empty")
	}

	holidays := make(map[string]string, len(c.Holidays))
	for _, h := range c.Holidays {
		d, err := model.ParseDate(h.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h.Name, err)
		}
		holidays[d.Format(model.DateLayout)] = h.Name
	}

	return &slots.Policy{
		Open:        open,
		Close:       closeAt,
		Granularity: time.Duration(c.SlotMinutes) * time.Minute,
		Weekdays:    weekdays,
		Holidays:    holidays,
		Location:    loc,
	}, nil
}

// HolidayDates returns the configured holiday dates in order.
func (c *ClinicConfig) HolidayDates() []string {
	out := make([]string, 0, len(c.Holidays))
	for _, h := range c.Holidays {
		out = append(out, h.Date)
	}
	sort.Strings(out)
	return out
}
