package news

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// CalendarEvent is one economic-calendar entry as ingested from a JSONL feed.
// Field aliases mirror the formats the calendar providers emit.
type CalendarEvent struct {
	Name          string    `json:"event_name"`
	Date          time.Time `json:"-"`
	Currency      string    `json:"currency"`
	Impact        Impact    `json:"impact"`
	Forecast      string    `json:"forecast"`
	Previous      string    `json:"previous"`
	Actual        string    `json:"actual"`
	Source        string    `json:"source"`
	Description   string    `json:"description"`
	AffectedPairs []string  `json:"affected_pairs"`
}

// calendar providers are inconsistent about date formats
var calendarDateFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04",
	"2006-01-02",
}

// rawCalendarEvent accepts the aliased field names seen in provider feeds
type rawCalendarEvent struct {
	EventName     string      `json:"event_name"`
	Name          string      `json:"name"`
	EventDate     string      `json:"event_date"`
	Date          string      `json:"date"`
	Time          string      `json:"time"`
	Currency      string      `json:"currency"`
	Impact        string      `json:"impact"`
	Forecast      string      `json:"forecast"`
	Previous      string      `json:"previous"`
	Actual        string      `json:"actual"`
	Source        string      `json:"source"`
	Description   string      `json:"description"`
	AffectedPairs interface{} `json:"affected_pairs"`
}

// ParseCalendarLine parses one JSONL calendar entry. Entries without a name
// or a parseable date are rejected.
func ParseCalendarLine(line []byte) (*CalendarEvent, error) {
	var raw rawCalendarEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("invalid calendar entry: %w", err)
	}

	name := raw.EventName
	if name == "" {
		name = raw.Name
	}
	if name == "" {
		return nil, fmt.Errorf("calendar entry has no event name")
	}

	dateStr := firstNonEmpty(raw.EventDate, raw.Date, raw.Time)
	if dateStr == "" {
		return nil, fmt.Errorf("calendar entry %q has no date", name)
	}
	date, err := parseCalendarDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("calendar entry %q: %w", name, err)
	}

	source := raw.Source
	if source == "" {
		source = "API"
	}

	return &CalendarEvent{
		Name:          name,
		Date:          date,
		Currency:      strings.ToUpper(strings.TrimSpace(raw.Currency)),
		Impact:        ParseImpact(raw.Impact),
		Forecast:      raw.Forecast,
		Previous:      raw.Previous,
		Actual:        raw.Actual,
		Source:        source,
		Description:   raw.Description,
		AffectedPairs: parseAffectedPairs(raw.AffectedPairs),
	}, nil
}

// ReadCalendar reads JSONL calendar events from a stream, skipping malformed
// lines rather than aborting the whole ingest.
func ReadCalendar(r io.Reader) ([]CalendarEvent, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var events []CalendarEvent
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ev, err := ParseCalendarLine([]byte(line))
		if err != nil {
			continue
		}
		events = append(events, *ev)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading calendar stream: %w", err)
	}
	return events, nil
}

// ToEvent converts a calendar entry into a model Event. Sentiment is derived
// from actual (or forecast) versus previous when both parse as numbers:
// beating the previous reading reads as positive for the currency.
func (ce CalendarEvent) ToEvent() Event {
	sentiment := 0.0
	current := firstNonEmpty(ce.Actual, ce.Forecast)
	if cur, err := parseNumeric(current); err == nil {
		if prev, err := parseNumeric(ce.Previous); err == nil && prev != 0 {
			sentiment = clamp((cur-prev)/abs(prev), -1, 1)
		}
	}

	return Event{
		Timestamp: ce.Date,
		Title:     ce.Name,
		Impact:    ce.Impact,
		Currency:  ce.Currency,
		Sentiment: sentiment,
	}
}

func parseCalendarDate(s string) (time.Time, error) {
	for _, format := range calendarDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse date %q", s)
}

// parseAffectedPairs handles "EUR/USD,GBP/USD", "EURUSD,GBPUSD" and JSON
// array forms.
func parseAffectedPairs(v interface{}) []string {
	var parts []string
	switch val := v.(type) {
	case string:
		parts = strings.Split(val, ",")
	case []interface{}:
		for _, item := range val {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	default:
		return nil
	}

	pairs := make([]string, 0, len(parts))
	for _, p := range parts {
		cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(p), "/", ""))
		if cleaned != "" {
			pairs = append(pairs, cleaned)
		}
	}
	return pairs
}

// parseNumeric strips common calendar decorations ("0.5%", "1.2K", "-3M")
func parseNumeric(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimSuffix(cleaned, "%")
	cleaned = strings.TrimSuffix(cleaned, "K")
	cleaned = strings.TrimSuffix(cleaned, "M")
	cleaned = strings.TrimSuffix(cleaned, "B")
	if cleaned == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	return strconv.ParseFloat(cleaned, 64)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
