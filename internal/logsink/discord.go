package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/flycast-tech/jobremind/internal/civil"
)

const (
	discordUsername   = "Reminder System Logger"
	discordFooterText = "Flycast Technologies - Reminder System"

	colorGreen     = 0x00FF00
	colorOrange    = 0xFFA500
	colorOrangeRed = 0xFF4500
	colorRed       = 0xFF0000
)

// DiscordSink posts events as rich embeds to a Discord webhook.
type DiscordSink struct {
	url     string
	client  *http.Client
	clock   func() time.Time
	timeout time.Duration
}

// NewDiscordSink creates a sink for the given webhook URL.
func NewDiscordSink(url string) *DiscordSink {
	return &DiscordSink{
		url:     url,
		client:  &http.Client{},
		clock:   time.Now,
		timeout: 10 * time.Second,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *DiscordSink) WithClock(clock func() time.Time) *DiscordSink {
	s.clock = clock
	return s
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp"`
	Fields      []discordField `json:"fields"`
	Footer      discordFooter  `json:"footer"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordPayload struct {
	Embeds   []discordEmbed `json:"embeds"`
	Username string         `json:"username"`
}

// Event builds and posts one embed. Any failure is logged and dropped.
func (s *DiscordSink) Event(ctx context.Context, typ, message string, data map[string]any, level string) {
	now := s.clock()

	embed := discordEmbed{
		Title:       embedTitle(typ, level),
		Description: message,
		Color:       embedColor(typ, level),
		Timestamp:   now.UTC().Format(time.RFC3339),
		Fields: []discordField{
			{Name: "Time (PKT)", Value: now.In(civil.Location).Format("02-Jan-2006 15:04:05"), Inline: true},
			{Name: "Type", Value: typ, Inline: true},
			{Name: "Level", Value: level, Inline: true},
		},
		Footer: discordFooter{Text: discordFooterText},
	}

	if len(data) > 0 {
		raw, err := json.MarshalIndent(data, "", "  ")
		if err == nil {
			embed.Fields = append(embed.Fields, discordField{
				Name:  "Additional Data",
				Value: "```json\n" + string(raw) + "\n```",
			})
		}
	}

	if err := s.post(ctx, discordPayload{Embeds: []discordEmbed{embed}, Username: discordUsername}); err != nil {
		log.Printf("logsink: discord post failed: %v", err)
	}
}

func (s *DiscordSink) post(ctx context.Context, payload discordPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func embedTitle(typ, level string) string {
	if typ == "" {
		typ = TypeEvent
	}
	typ = strings.ToUpper(typ[:1]) + typ[1:]
	return fmt.Sprintf("%s Log - %s", typ, strings.ToUpper(level))
}

func embedColor(typ, level string) int {
	if typ == TypeError {
		if level == LevelCritical {
			return colorRed
		}
		return colorOrangeRed
	}
	switch level {
	case LevelWarning:
		return colorOrange
	case LevelError:
		return colorOrangeRed
	case LevelCritical:
		return colorRed
	default:
		return colorGreen
	}
}

var _ Sink = (*DiscordSink)(nil)
