package definition

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporting-scheduler/pkg/errutil"
)

func validReport() ReportDefinition {
	return ReportDefinition{
		Name:      "weekly sales",
		IsEnabled: true,
		Source: Source{
			Type:   Dashboard,
			Origin: "https://analytics.example.com",
			ID:     "dash-1",
		},
		Format: Format{
			Duration:   Duration(time.Hour),
			FileFormat: Pdf,
		},
		Trigger: Trigger{
			Type: CronScheduleType,
			Schedule: &Schedule{
				Cron: &CronSchedule{Expression: "0 8 * * 1", Timezone: "UTC"},
			},
		},
	}
}

func TestValidateAcceptsWellFormedDefinition(t *testing.T) {
	r := validReport()
	assert.NoError(t, r.Validate())
}

func TestValidateScheduleMatchesTriggerType(t *testing.T) {
	t.Run("schedule trigger without schedule", func(t *testing.T) {
		r := validReport()
		r.Trigger.Schedule = nil
		err := r.Validate()
		require.Error(t, err)
		assert.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
	})

	t.Run("non-schedule trigger with schedule", func(t *testing.T) {
		r := validReport()
		r.Trigger.Type = OnDemand
		err := r.Validate()
		require.Error(t, err)
		assert.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
	})

	t.Run("non-schedule trigger without schedule", func(t *testing.T) {
		r := validReport()
		r.Trigger.Type = Download
		r.Trigger.Schedule = nil
		assert.NoError(t, r.Validate())
	})
}

func TestValidateFieldChecks(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ReportDefinition)
	}{
		{"empty name", func(r *ReportDefinition) { r.Name = " " }},
		{"unknown source type", func(r *ReportDefinition) { r.Source.Type = "Spreadsheet" }},
		{"missing source id", func(r *ReportDefinition) { r.Source.ID = "" }},
		{"zero duration", func(r *ReportDefinition) { r.Format.Duration = 0 }},
		{"unknown file format", func(r *ReportDefinition) { r.Format.FileFormat = "Docx" }},
		{"unknown trigger type", func(r *ReportDefinition) { r.Trigger.Type = "Sometimes" }},
		{"malformed timeFrom", func(r *ReportDefinition) { r.Format.TimeFrom = "yesterday" }},
		{"malformed timeTo", func(r *ReportDefinition) { r.Format.TimeTo = "2021-13-99" }},
		{"delivery without title", func(r *ReportDefinition) {
			r.Delivery = &Delivery{TextDescription: "done"}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validReport()
			tc.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
		})
	}
}

func TestDurationJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Duration(90 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, `"1h30m0s"`, string(data))

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"45m"`), &d))
	assert.Equal(t, Duration(45*time.Minute), d)

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
}

func TestExplicitWindow(t *testing.T) {
	f := Format{TimeFrom: "2021-01-01T00:00:00Z", TimeTo: "2021-01-02T00:00:00Z"}
	begin, end, ok := f.ExplicitWindow()
	require.True(t, ok)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), begin)
	assert.Equal(t, time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC), end)

	_, _, ok = Format{TimeFrom: "2021-01-01T00:00:00Z"}.ExplicitWindow()
	assert.False(t, ok)

	_, _, ok = Format{}.ExplicitWindow()
	assert.False(t, ok)
}

func TestScheduleSpec(t *testing.T) {
	t.Run("cron with timezone", func(t *testing.T) {
		s := &Schedule{Cron: &CronSchedule{Expression: "0 8 * * 1", Timezone: "Asia/Tokyo"}}
		spec, err := s.Spec()
		require.NoError(t, err)
		assert.Equal(t, "CRON_TZ=Asia/Tokyo 0 8 * * 1", spec)
	})

	t.Run("cron without timezone", func(t *testing.T) {
		s := &Schedule{Cron: &CronSchedule{Expression: "*/5 * * * *"}}
		spec, err := s.Spec()
		require.NoError(t, err)
		assert.Equal(t, "*/5 * * * *", spec)
	})

	t.Run("interval", func(t *testing.T) {
		s := &Schedule{Interval: &IntervalSchedule{Period: 12, Unit: "Hours"}}
		spec, err := s.Spec()
		require.NoError(t, err)
		assert.Equal(t, "@every 12h0m0s", spec)
	})

	t.Run("unknown interval unit", func(t *testing.T) {
		s := &Schedule{Interval: &IntervalSchedule{Period: 1, Unit: "Fortnights"}}
		_, err := s.Spec()
		assert.Error(t, err)
	})

	t.Run("empty schedule", func(t *testing.T) {
		_, err := (&Schedule{}).Spec()
		assert.Error(t, err)
	})
}

func TestDetailsIsEnabled(t *testing.T) {
	d := &Details{Report: validReport()}
	assert.True(t, d.IsEnabled())

	disabled := &Details{Report: validReport()}
	disabled.Report.IsEnabled = false
	assert.False(t, disabled.IsEnabled())

	onDemand := &Details{Report: validReport()}
	onDemand.Report.Trigger = Trigger{Type: OnDemand}
	assert.False(t, onDemand.IsEnabled())
}

func TestRecordRoundTrip(t *testing.T) {
	d := &Details{
		ID:          "42",
		CreatedTime: time.Now().UTC().Truncate(time.Second),
		UpdatedTime: time.Now().UTC().Truncate(time.Second),
		Tenant:      "finance",
		Access:      []string{"User:alice", "BERole:sales"},
		Report:      validReport(),
	}

	rec, err := d.toRecord()
	require.NoError(t, err)
	assert.True(t, rec.IsEnabled)
	assert.Equal(t, CronScheduleType, rec.TriggerType)

	back, err := detailsFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, d, back)
}
