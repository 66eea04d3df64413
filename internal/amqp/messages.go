package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"spendmind/internal/report"
)

// ReportEmailJob carries a rendered report to the e-mail worker. The payload
// travels base64 encoded inside the JSON body.
type ReportEmailJob struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Recipient   string    `json:"recipient"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Payload     []byte    `json:"payload"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewReportEmailJob wraps a validated dispatch.
func NewReportEmailJob(owner string, d report.Dispatch) *ReportEmailJob {
	return &ReportEmailJob{
		ID:          uuid.NewString(),
		Owner:       owner,
		Recipient:   d.Recipient,
		Subject:     d.Subject,
		Body:        d.Body,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Payload:     d.Payload,
		Timestamp:   time.Now(),
	}
}

// Dispatch converts the job back into the mail contract.
func (j *ReportEmailJob) Dispatch() report.Dispatch {
	return report.Dispatch{
		Recipient:   j.Recipient,
		Subject:     j.Subject,
		Body:        j.Body,
		Filename:    j.Filename,
		ContentType: j.ContentType,
		Payload:     j.Payload,
	}
}

// ToJSON converts the job to JSON bytes
func (j *ReportEmailJob) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

// ReportEmailJobFromJSON decodes and sanity checks a job.
func ReportEmailJobFromJSON(data []byte) (*ReportEmailJob, error) {
	var job ReportEmailJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	if strings.TrimSpace(job.ID) == "" {
		return nil, errors.New("job without id")
	}
	if strings.TrimSpace(job.Recipient) == "" {
		return nil, fmt.Errorf("job %s without recipient", job.ID)
	}
	return &job, nil
}
