package postgres

const queryGetActiveJobs = `
SELECT
    id, job_number, client_name, forwarding_date, production_deadline,
    status, reminder_sent, snooze_expires_at, last_reminder_sent_at,
    overdue_reminder_count, created_at, updated_at
FROM jobs
WHERE status <> 'Completed'
ORDER BY production_deadline ASC, job_number ASC
`

const queryMarkReminded = `
UPDATE jobs
SET reminder_sent = true,
    last_reminder_sent_at = $2,
    snooze_expires_at = NULL,
    overdue_reminder_count = overdue_reminder_count + $3,
    updated_at = $2
WHERE id = $1
`

const queryInsertJob = `
INSERT INTO jobs (
    id, job_number, client_name, forwarding_date, production_deadline,
    status, reminder_sent, snooze_expires_at, last_reminder_sent_at,
    overdue_reminder_count, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

const queryGetJobByNumber = `
SELECT
    id, job_number, client_name, forwarding_date, production_deadline,
    status, reminder_sent, snooze_expires_at, last_reminder_sent_at,
    overdue_reminder_count, created_at, updated_at
FROM jobs
WHERE job_number = $1
`

const queryListJobs = `
SELECT
    id, job_number, client_name, forwarding_date, production_deadline,
    status, reminder_sent, snooze_expires_at, last_reminder_sent_at,
    overdue_reminder_count, created_at, updated_at
FROM jobs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

const queryDeleteJob = `
DELETE FROM jobs
WHERE job_number = $1
RETURNING id
`

const queryGetEmailConfig = `
SELECT to_email, from_email, from_password
FROM email_configurations
WHERE id = 1
`

const querySaveEmailConfig = `
INSERT INTO email_configurations (id, to_email, from_email, from_password, updated_at)
VALUES (1, $1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET to_email = EXCLUDED.to_email,
    from_email = EXCLUDED.from_email,
    from_password = EXCLUDED.from_password,
    updated_at = EXCLUDED.updated_at
`
