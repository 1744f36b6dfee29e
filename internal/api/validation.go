package api

import (
	"fmt"
	"strings"

	"github.com/flycast-tech/jobremind/internal/civil"
)

func validateCreateJob(req CreateJobRequest) error {
	if req.JobNumber == "" {
		return fmt.Errorf("job_number is required")
	}
	if req.ClientName == "" {
		return fmt.Errorf("client_name is required")
	}

	if req.ForwardingDate == "" {
		return fmt.Errorf("forwarding_date is required")
	}
	if _, err := civil.ParseDate(req.ForwardingDate); err != nil {
		return fmt.Errorf("invalid forwarding_date: %w", err)
	}

	if req.ProductionDeadline == "" {
		return fmt.Errorf("production_deadline is required")
	}
	if _, err := civil.ParseDate(req.ProductionDeadline); err != nil {
		return fmt.Errorf("invalid production_deadline: %w", err)
	}

	return nil
}

func validateEmailConfig(req SaveEmailConfigRequest) error {
	if err := validateEmail("to_email", req.ToEmail); err != nil {
		return err
	}
	if err := validateEmail("from_email", req.FromEmail); err != nil {
		return err
	}
	if req.FromPassword == "" {
		return fmt.Errorf("from_password is required")
	}
	return nil
}

func validateEmail(field, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", field)
	}
	at := strings.Index(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return fmt.Errorf("invalid %s", field)
	}
	return nil
}
