package instance

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"reporting-scheduler/services/definition"
)

// Status is the lifecycle state of a report instance.
// Scheduled -> Executing -> {Success, Failed}. Any state may be overwritten
// to a terminal state by an explicit update, but never back to Scheduled.
type Status string

const (
	Scheduled Status = "Scheduled"
	Executing Status = "Executing"
	Success   Status = "Success"
	Failed    Status = "Failed"
)

func (s Status) Valid() bool {
	switch s {
	case Scheduled, Executing, Success, Failed:
		return true
	default:
		return false
	}
}

func (s Status) Terminal() bool {
	return s == Success || s == Failed
}

// Record is one concrete execution of a report. SeqNo is the optimistic
// concurrency token: every write bumps it, and conditional writes carry the
// value read so a stale writer fails instead of clobbering.
type Record struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
	BeginTime time.Time `gorm:"column:begin_time"`
	EndTime   time.Time `gorm:"column:end_time"`
	Tenant    string    `gorm:"column:tenant;index"`
	Status    Status    `gorm:"column:status;index"`

	StatusText               string         `gorm:"column:status_text"`
	InContextDownloadURLPath string         `gorm:"column:in_context_download_url_path"`
	Definition               datatypes.JSON `gorm:"column:definition"` // snapshot of definition.Details, optional
	SeqNo                    int64          `gorm:"column:seq_no"`

	Access []AccessEntry `gorm:"foreignKey:InstanceID;references:ID;constraint:OnDelete:CASCADE"`
}

func (Record) TableName() string { return "report_instances" }

// AccessEntry is one access principal granted on an instance.
type AccessEntry struct {
	InstanceID string `gorm:"column:instance_id;primaryKey"`
	Principal  string `gorm:"column:principal;primaryKey"`
}

func (AccessEntry) TableName() string { return "report_instance_access" }

// Instance is the service-facing view of a Record.
type Instance struct {
	ID                       string              `json:"id"`
	CreatedTime              time.Time           `json:"createdTime"`
	UpdatedTime              time.Time           `json:"updatedTime"`
	BeginTime                time.Time           `json:"beginTime"`
	EndTime                  time.Time           `json:"endTime"`
	Tenant                   string              `json:"tenant"`
	Access                   []string            `json:"access"`
	Definition               *definition.Details `json:"reportDefinitionDetails,omitempty"`
	Status                   Status              `json:"status"`
	StatusText               string              `json:"statusText,omitempty"`
	InContextDownloadURLPath string              `json:"inContextDownloadUrlPath,omitempty"`

	seqNo int64
}

// SeqNo exposes the version token read with this view.
func (i *Instance) SeqNo() int64 { return i.seqNo }

func (i *Instance) toRecord() (*Record, error) {
	rec := &Record{
		ID:                       i.ID,
		CreatedAt:                i.CreatedTime,
		UpdatedAt:                i.UpdatedTime,
		BeginTime:                i.BeginTime,
		EndTime:                  i.EndTime,
		Tenant:                   i.Tenant,
		Status:                   i.Status,
		StatusText:               i.StatusText,
		InContextDownloadURLPath: i.InContextDownloadURLPath,
		SeqNo:                    i.seqNo,
	}
	if i.Definition != nil {
		body, err := json.Marshal(i.Definition)
		if err != nil {
			return nil, err
		}
		rec.Definition = body
	}
	for _, principal := range i.Access {
		rec.Access = append(rec.Access, AccessEntry{InstanceID: i.ID, Principal: principal})
	}
	return rec, nil
}

func instanceFromRecord(rec *Record) (*Instance, error) {
	inst := &Instance{
		ID:                       rec.ID,
		CreatedTime:              rec.CreatedAt,
		UpdatedTime:              rec.UpdatedAt,
		BeginTime:                rec.BeginTime,
		EndTime:                  rec.EndTime,
		Tenant:                   rec.Tenant,
		Status:                   rec.Status,
		StatusText:               rec.StatusText,
		InContextDownloadURLPath: rec.InContextDownloadURLPath,
		seqNo:                    rec.SeqNo,
	}
	if len(rec.Definition) > 0 {
		inst.Definition = &definition.Details{}
		if err := json.Unmarshal(rec.Definition, inst.Definition); err != nil {
			return nil, fmt.Errorf("corrupt definition snapshot on instance %s: %w", rec.ID, err)
		}
	}
	for _, entry := range rec.Access {
		inst.Access = append(inst.Access, entry.Principal)
	}
	return inst, nil
}
