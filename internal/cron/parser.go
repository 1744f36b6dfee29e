// Package cron parses the poll cadence expression that drives the
// scheduled trigger shell. Expressions are standard five-field cron,
// evaluated in the civil timezone.
package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flycast-tech/jobremind/internal/civil"
)

type Parser struct {
	parser cron.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

func (p *Parser) Parse(expression string) (Schedule, error) {
	sched, err := p.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron: %w", err)
	}
	return &schedule{sched: sched}, nil
}

type Schedule interface {
	Next(after time.Time) time.Time
}

type schedule struct {
	sched cron.Schedule
}

func (s *schedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.In(civil.Location))
}
