package domain

// EmailConfig holds the outbound mail identity for digest reminders.
// FromPassword is an SMTP app password; it is stored but never echoed
// back through the API.
type EmailConfig struct {
	ToEmail      string
	FromEmail    string
	FromPassword string
	Configured   bool
}

// Complete reports whether the config can actually send mail.
func (c EmailConfig) Complete() bool {
	return c.ToEmail != "" && c.FromEmail != "" && c.FromPassword != ""
}
