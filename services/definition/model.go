package definition

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"reporting-scheduler/pkg/errutil"
)

type SourceType string

const (
	Dashboard     SourceType = "Dashboard"
	Visualization SourceType = "Visualization"
	SavedSearch   SourceType = "SavedSearch"
	Notebook      SourceType = "Notebook"
)

func (t SourceType) Valid() bool {
	switch t {
	case Dashboard, Visualization, SavedSearch, Notebook:
		return true
	default:
		return false
	}
}

type FileFormat string

const (
	Pdf  FileFormat = "Pdf"
	Png  FileFormat = "Png"
	Csv  FileFormat = "Csv"
	Xlsx FileFormat = "Xlsx"
)

func (f FileFormat) Valid() bool {
	switch f {
	case Pdf, Png, Csv, Xlsx:
		return true
	default:
		return false
	}
}

type TriggerType string

const (
	Download         TriggerType = "Download"
	OnDemand         TriggerType = "OnDemand"
	CronScheduleType TriggerType = "CronSchedule"
	IntervalType     TriggerType = "IntervalSchedule"
)

func (t TriggerType) Valid() bool {
	switch t {
	case Download, OnDemand, CronScheduleType, IntervalType:
		return true
	default:
		return false
	}
}

// IsSchedule reports whether the trigger type is driven by the scheduler
// rather than by an explicit request.
func (t TriggerType) IsSchedule() bool {
	return t == CronScheduleType || t == IntervalType
}

// Duration serializes as a Go duration string ("30m", "1h").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

type Source struct {
	Description string     `json:"description"`
	Type        SourceType `json:"type"`
	Origin      string     `json:"origin"`
	ID          string     `json:"id"`
}

type Format struct {
	Duration   Duration   `json:"duration"`
	FileFormat FileFormat `json:"fileFormat"`
	Limit      *int       `json:"limit,omitempty"`
	Header     string     `json:"header,omitempty"`
	Footer     string     `json:"footer,omitempty"`
	TimeFrom   string     `json:"timeFrom,omitempty"`
	TimeTo     string     `json:"timeTo,omitempty"`
}

// ExplicitWindow returns the fixed report window when both timeFrom and
// timeTo are set. The times are used verbatim, no windowing math applies.
func (f Format) ExplicitWindow() (begin, end time.Time, ok bool) {
	if f.TimeFrom == "" || f.TimeTo == "" {
		return time.Time{}, time.Time{}, false
	}
	begin, err := time.Parse(time.RFC3339, f.TimeFrom)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.Parse(time.RFC3339, f.TimeTo)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return begin, end, true
}

type CronSchedule struct {
	Expression string `json:"expression"`
	Timezone   string `json:"timezone,omitempty"`
}

type IntervalSchedule struct {
	StartTime time.Time `json:"startTime,omitempty"`
	Period    int       `json:"period"`
	Unit      string    `json:"unit"`
}

// Schedule is a tagged union: exactly one of Cron or Interval is set.
type Schedule struct {
	Cron     *CronSchedule     `json:"cron,omitempty"`
	Interval *IntervalSchedule `json:"interval,omitempty"`
}

// intervalUnits maps the interval unit names to their base duration.
var intervalUnits = map[string]time.Duration{
	"Minutes": time.Minute,
	"Hours":   time.Hour,
	"Days":    24 * time.Hour,
}

// Spec converts the schedule to a cron spec usable by the scheduler:
// cron expressions pass through (with an optional CRON_TZ prefix), interval
// schedules become an "@every" spec.
func (s *Schedule) Spec() (string, error) {
	switch {
	case s == nil:
		return "", fmt.Errorf("no schedule configured")
	case s.Cron != nil:
		if s.Cron.Timezone != "" {
			return fmt.Sprintf("CRON_TZ=%s %s", s.Cron.Timezone, s.Cron.Expression), nil
		}
		return s.Cron.Expression, nil
	case s.Interval != nil:
		unit, ok := intervalUnits[s.Interval.Unit]
		if !ok {
			return "", fmt.Errorf("unknown interval unit %q", s.Interval.Unit)
		}
		return "@every " + (time.Duration(s.Interval.Period) * unit).String(), nil
	default:
		return "", fmt.Errorf("no schedule configured")
	}
}

type Trigger struct {
	Type     TriggerType `json:"triggerType"`
	Schedule *Schedule   `json:"schedule,omitempty"`
}

type Delivery struct {
	Title           string   `json:"title"`
	TextDescription string   `json:"textDescription"`
	HTMLDescription string   `json:"htmlDescription,omitempty"`
	ChannelIDs      []string `json:"channelIds"`
}

// ReportDefinition is the immutable job template supplied by callers.
type ReportDefinition struct {
	Name      string    `json:"name"`
	IsEnabled bool      `json:"isEnabled"`
	Source    Source    `json:"source"`
	Format    Format    `json:"format"`
	Trigger   Trigger   `json:"trigger"`
	Delivery  *Delivery `json:"delivery,omitempty"`
}

// Validate enforces the parse-time invariants, most importantly that a
// schedule is present exactly when the trigger is a schedule type.
func (r *ReportDefinition) Validate() error {
	var details []errutil.Detail
	add := func(field, msg string) {
		details = append(details, errutil.Detail{Field: field, Message: msg})
	}

	if strings.TrimSpace(r.Name) == "" {
		add("name", "must not be empty")
	}
	if !r.Source.Type.Valid() {
		add("source.type", fmt.Sprintf("unknown source type %q", r.Source.Type))
	}
	if r.Source.ID == "" {
		add("source.id", "must not be empty")
	}
	if r.Format.Duration <= 0 {
		add("format.duration", "must be a positive duration")
	}
	if !r.Format.FileFormat.Valid() {
		add("format.fileFormat", fmt.Sprintf("unknown file format %q", r.Format.FileFormat))
	}
	if r.Format.TimeFrom != "" {
		if _, err := time.Parse(time.RFC3339, r.Format.TimeFrom); err != nil {
			add("format.timeFrom", "must be an RFC 3339 timestamp")
		}
	}
	if r.Format.TimeTo != "" {
		if _, err := time.Parse(time.RFC3339, r.Format.TimeTo); err != nil {
			add("format.timeTo", "must be an RFC 3339 timestamp")
		}
	}

	switch {
	case !r.Trigger.Type.Valid():
		add("trigger.triggerType", fmt.Sprintf("unknown trigger type %q", r.Trigger.Type))
	case r.Trigger.Type.IsSchedule():
		if r.Trigger.Schedule == nil {
			add("trigger.schedule", fmt.Sprintf("schedule is required for trigger type %s", r.Trigger.Type))
		} else if _, err := r.Trigger.Schedule.Spec(); err != nil {
			add("trigger.schedule", err.Error())
		} else if r.Trigger.Type == CronScheduleType && r.Trigger.Schedule.Cron == nil {
			add("trigger.schedule.cron", "cron block is required for CronSchedule trigger")
		} else if r.Trigger.Type == IntervalType && r.Trigger.Schedule.Interval == nil {
			add("trigger.schedule.interval", "interval block is required for IntervalSchedule trigger")
		}
	default:
		if r.Trigger.Schedule != nil {
			add("trigger.schedule", fmt.Sprintf("schedule must not be set for trigger type %s", r.Trigger.Type))
		}
	}

	if r.Delivery != nil {
		if r.Delivery.Title == "" {
			add("delivery.title", "must not be empty")
		}
		if r.Delivery.TextDescription == "" {
			add("delivery.textDescription", "must not be empty")
		}
	}

	if len(details) > 0 {
		return errutil.ValidationFailed("invalid report definition", errutil.WithDetails(details...))
	}
	return nil
}

// Details wraps a ReportDefinition with ownership and scheduling metadata.
// This is the unit registered with the scheduler.
type Details struct {
	ID          string           `json:"id"`
	CreatedTime time.Time        `json:"createdTime"`
	UpdatedTime time.Time        `json:"updatedTime"`
	Tenant      string           `json:"tenant"`
	Access      []string         `json:"access"`
	Report      ReportDefinition `json:"reportDefinition"`
}

// IsEnabled reports whether the definition should be registered with the
// scheduler: enabled, schedule-type trigger, and a schedule present.
func (d *Details) IsEnabled() bool {
	return d.Report.IsEnabled &&
		d.Report.Trigger.Type.IsSchedule() &&
		d.Report.Trigger.Schedule != nil
}

// Schedule returns the definition's schedule, nil for on-demand triggers.
func (d *Details) Schedule() *Schedule {
	return d.Report.Trigger.Schedule
}

// Record is the persisted form of Details. The report body is stored as a
// JSON document; the enabled flag and trigger type are extracted into columns
// so the registrar can query schedulable definitions directly.
type Record struct {
	ID          string         `gorm:"column:id;primaryKey"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at"`
	Tenant      string         `gorm:"column:tenant;index"`
	IsEnabled   bool           `gorm:"column:is_enabled;index"`
	TriggerType TriggerType    `gorm:"column:trigger_type"`
	Body        datatypes.JSON `gorm:"column:body"`
	Access      []AccessEntry  `gorm:"foreignKey:DefinitionID;references:ID;constraint:OnDelete:CASCADE"`
}

func (Record) TableName() string { return "report_definitions" }

// AccessEntry is one access principal granted on a definition, normalized so
// list queries can filter with a plain join.
type AccessEntry struct {
	DefinitionID string `gorm:"column:definition_id;primaryKey"`
	Principal    string `gorm:"column:principal;primaryKey"`
}

func (AccessEntry) TableName() string { return "report_definition_access" }

func (d *Details) toRecord() (*Record, error) {
	body, err := json.Marshal(d.Report)
	if err != nil {
		return nil, err
	}
	rec := &Record{
		ID:          d.ID,
		CreatedAt:   d.CreatedTime,
		UpdatedAt:   d.UpdatedTime,
		Tenant:      d.Tenant,
		IsEnabled:   d.Report.IsEnabled,
		TriggerType: d.Report.Trigger.Type,
		Body:        body,
	}
	for _, principal := range d.Access {
		rec.Access = append(rec.Access, AccessEntry{DefinitionID: d.ID, Principal: principal})
	}
	return rec, nil
}

func detailsFromRecord(rec *Record) (*Details, error) {
	d := &Details{
		ID:          rec.ID,
		CreatedTime: rec.CreatedAt,
		UpdatedTime: rec.UpdatedAt,
		Tenant:      rec.Tenant,
	}
	if err := json.Unmarshal(rec.Body, &d.Report); err != nil {
		return nil, fmt.Errorf("corrupt definition body %s: %w", rec.ID, err)
	}
	for _, entry := range rec.Access {
		d.Access = append(d.Access, entry.Principal)
	}
	return d, nil
}
