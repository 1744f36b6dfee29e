package dispatcher

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"

	"github.com/flycast-tech/jobremind/internal/civil"
	"github.com/flycast-tech/jobremind/internal/domain"
	"github.com/flycast-tech/jobremind/internal/engine"
)

// DigestEntry is one job row in the digest email, annotated with its
// urgency relative to the run's civil date.
type DigestEntry struct {
	JobNumber     string
	ClientName    string
	Deadline      string // dd-Mon-yyyy, or the raw value if unparseable
	Status        string
	Cause         engine.Cause
	DaysRemaining int
	UrgencyText   string
	UrgencyColor  string
}

func newDigestEntry(cand Candidate, now civil.Time) DigestEntry {
	entry := DigestEntry{
		JobNumber:  cand.Job.JobNumber,
		ClientName: cand.Job.ClientName,
		Deadline:   cand.Job.ProductionDeadline,
		Status:     cand.Job.Status,
		Cause:      cand.Decision.Cause,
	}

	deadline, err := civil.ParseDate(cand.Job.ProductionDeadline)
	if err != nil {
		// Snooze-expired entries may carry any deadline state; render as-is.
		entry.UrgencyText, entry.UrgencyColor = "ON TRACK", "#10b981"
		return entry
	}

	entry.Deadline = deadline.Format("02-Jan-2006")
	entry.DaysRemaining = civil.DaysBetween(now.Date(), deadline)

	switch {
	case entry.DaysRemaining < 0:
		entry.UrgencyText, entry.UrgencyColor = "OVERDUE", "#ef4444"
	case entry.DaysRemaining == 0:
		entry.UrgencyText, entry.UrgencyColor = "DUE TODAY", "#f59e0b"
	case entry.DaysRemaining <= 2:
		entry.UrgencyText, entry.UrgencyColor = "URGENT", "#f59e0b"
	default:
		entry.UrgencyText, entry.UrgencyColor = "ON TRACK", "#10b981"
	}
	return entry
}

// DaysLabel renders the remaining/overdue day count for the template.
func (e DigestEntry) DaysLabel() string {
	days := e.DaysRemaining
	suffix := "remaining"
	if days < 0 {
		days = -days
		suffix = "overdue"
	}
	unit := "days"
	if days == 1 {
		unit = "day"
	}
	return fmt.Sprintf("%d %s %s", days, unit, suffix)
}

var digestTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Job Reminder - {{len .Entries}} Job{{if .Plural}}s{{end}} {{.UrgencyText}}</title>
</head>
<body style="margin:0;padding:0;font-family:-apple-system,'Segoe UI',Roboto,sans-serif;background-color:#f8fafc;">
  <div style="max-width:600px;margin:0 auto;background-color:#ffffff;">
    <div style="background-color:#1e293b;padding:24px;text-align:center;">
      <h1 style="color:#ffffff;margin:0;font-size:24px;">Job Reminder Alert</h1>
      <p style="color:#cbd5e1;margin:8px 0 0 0;font-size:14px;">Automated reminder from Flycast Technologies</p>
    </div>
    <div style="padding:24px;">
      <div style="background-color:{{.UrgencyColor}};color:#ffffff;padding:16px;border-radius:8px;margin-bottom:24px;text-align:center;">
        <h2 style="margin:0;font-size:20px;">{{.UrgencyText}} - {{len .Entries}} Job{{if .Plural}}s{{end}}</h2>
      </div>
      <div style="background-color:#f1f5f9;border-radius:8px;padding:16px;margin-bottom:24px;text-align:center;">
        <span style="font-size:14px;color:#64748b;">Total: <strong>{{len .Entries}}</strong> &nbsp; Due today: <strong>{{.DueToday}}</strong> &nbsp; Overdue: <strong>{{.Overdue}}</strong></span>
      </div>
      {{range .Entries}}
      <div style="background-color:#f8fafc;border:1px solid #e2e8f0;border-radius:8px;padding:16px;margin-bottom:12px;">
        <div style="margin-bottom:8px;">
          <span style="font-weight:600;color:#1e293b;font-size:16px;">{{.JobNumber}}</span>
          <span style="float:right;padding:4px 8px;border-radius:4px;font-size:12px;font-weight:600;color:#ffffff;background-color:{{.UrgencyColor}};">{{.UrgencyText}}</span>
        </div>
        <div style="color:#64748b;font-size:14px;line-height:1.5;">
          <strong style="color:#1e293b;">Client:</strong> {{.ClientName}}<br>
          <strong style="color:#1e293b;">Deadline:</strong> {{.Deadline}} ({{.DaysLabel}})<br>
          <strong style="color:#1e293b;">Status:</strong> {{.Status}}
        </div>
      </div>
      {{end}}
    </div>
    <div style="background-color:#f8fafc;padding:16px;text-align:center;border-top:1px solid #e2e8f0;">
      <p style="margin:0;color:#64748b;font-size:12px;">This is an automated reminder from the Flycast Technologies Job Reminder System.</p>
    </div>
  </div>
</body>
</html>`))

type digestData struct {
	Entries      []DigestEntry
	Plural       bool
	UrgencyText  string
	UrgencyColor string
	DueToday     int
	Overdue      int
}

func buildDigest(entries []DigestEntry) (subject, body string, err error) {
	data := digestData{
		Entries:      entries,
		Plural:       len(entries) != 1,
		UrgencyText:  "ON TRACK",
		UrgencyColor: "#10b981",
	}

	// The banner takes the worst urgency across the batch.
	rank := map[string]int{"ON TRACK": 0, "URGENT": 1, "DUE TODAY": 2, "OVERDUE": 3}
	maxRank := 0
	for _, e := range entries {
		if rank[e.UrgencyText] >= maxRank {
			maxRank = rank[e.UrgencyText]
			data.UrgencyText = e.UrgencyText
			data.UrgencyColor = e.UrgencyColor
		}
		if e.DaysRemaining == 0 && e.UrgencyText == "DUE TODAY" {
			data.DueToday++
		}
		if e.DaysRemaining < 0 {
			data.Overdue++
		}
	}

	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render digest: %w", err)
	}

	plural := ""
	if data.Plural {
		plural = "s"
	}
	subject = fmt.Sprintf("Job Reminder: %d Job%s %s", len(entries), plural, data.UrgencyText)
	return subject, buf.String(), nil
}

// SMTPSender sends digests through an SMTP relay (Gmail in the reference
// deployment). Credentials travel with each call, not with the sender, so
// one process can serve a reconfigured mailbox without restarting.
type SMTPSender struct {
	host string
	port int
}

// NewSMTPSender creates an SMTPSender for the given relay.
func NewSMTPSender(host string, port int) *SMTPSender {
	return &SMTPSender{host: host, port: port}
}

// SendDigest renders and sends one digest email. Success or failure is
// atomic from the coordinator's point of view. gomail has no context
// support; cancellation is only checked before dialing.
func (s *SMTPSender) SendDigest(ctx context.Context, entries []DigestEntry, cfg domain.EmailConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body, err := buildDigest(entries)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", cfg.FromEmail)
	m.SetHeader("To", cfg.ToEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.host, s.port, cfg.FromEmail, cfg.FromPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

var _ MailSender = (*SMTPSender)(nil)
