package api

import (
	"time"

	"github.com/flycast-tech/jobremind/internal/domain"
)

type CreateJobRequest struct {
	JobNumber          string `json:"job_number"`
	ClientName         string `json:"client_name"`
	ForwardingDate     string `json:"forwarding_date"`
	ProductionDeadline string `json:"production_deadline"`
	Status             string `json:"status,omitempty"` // default "Pending"
}

type JobResponse struct {
	ID                   string `json:"id"`
	JobNumber            string `json:"job_number"`
	ClientName           string `json:"client_name"`
	ForwardingDate       string `json:"forwarding_date"`
	ProductionDeadline   string `json:"production_deadline"`
	Status               string `json:"status"`
	ReminderSent         bool   `json:"reminder_sent"`
	SnoozeExpiresAt      string `json:"snooze_expires_at,omitempty"`
	LastReminderSentAt   string `json:"last_reminder_sent_at,omitempty"`
	OverdueReminderCount int    `json:"overdue_reminder_count"`
	CreatedAt            string `json:"created_at"`
}

type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type SendReminderRequest struct {
	JobNumber string `json:"job_number"`
}

type EmailConfigResponse struct {
	ToEmail    string `json:"to_email"`
	FromEmail  string `json:"from_email"`
	Configured bool   `json:"configured"`
}

type SaveEmailConfigRequest struct {
	ToEmail      string `json:"to_email"`
	FromEmail    string `json:"from_email"`
	FromPassword string `json:"from_password"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func jobResponse(job domain.Job) JobResponse {
	resp := JobResponse{
		ID:                   job.ID.String(),
		JobNumber:            job.JobNumber,
		ClientName:           job.ClientName,
		ForwardingDate:       job.ForwardingDate,
		ProductionDeadline:   job.ProductionDeadline,
		Status:               job.Status,
		ReminderSent:         job.ReminderSent,
		OverdueReminderCount: job.OverdueReminderCount,
		CreatedAt:            formatTime(job.CreatedAt),
	}
	if job.SnoozeExpiresAt != nil {
		resp.SnoozeExpiresAt = formatTime(*job.SnoozeExpiresAt)
	}
	if job.LastReminderSentAt != nil {
		resp.LastReminderSentAt = formatTime(*job.LastReminderSentAt)
	}
	return resp
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
