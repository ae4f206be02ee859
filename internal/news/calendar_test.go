package news

import (
	"strings"
	"testing"
)

func TestParseCalendarLine(t *testing.T) {
	line := `{"event_name":"CPI y/y","event_date":"2026-03-02 13:30:00","currency":"usd","impact":"High","forecast":"3.1%","previous":"3.4%","actual":"2.9%","affected_pairs":"EUR/USD,GBP/USD"}`

	ev, err := ParseCalendarLine([]byte(line))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if ev.Name != "CPI y/y" {
		t.Errorf("unexpected name %q", ev.Name)
	}
	if ev.Currency != "USD" {
		t.Errorf("currency should be upper-cased, got %q", ev.Currency)
	}
	if ev.Impact != ImpactHigh {
		t.Errorf("expected HIGH impact, got %s", ev.Impact)
	}
	if ev.Date.Hour() != 13 || ev.Date.Minute() != 30 {
		t.Errorf("unexpected date %v", ev.Date)
	}
	if len(ev.AffectedPairs) != 2 || ev.AffectedPairs[0] != "EURUSD" || ev.AffectedPairs[1] != "GBPUSD" {
		t.Errorf("affected pairs should be normalized, got %v", ev.AffectedPairs)
	}
	if ev.Source != "API" {
		t.Errorf("missing source should default to API, got %q", ev.Source)
	}
}

func TestParseCalendarLineAliases(t *testing.T) {
	line := `{"name":"Rate Decision","date":"2026-03-02","currency":"EUR","impact":"medium","affected_pairs":["EURUSD","EURGBP"]}`

	ev, err := ParseCalendarLine([]byte(line))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if ev.Name != "Rate Decision" {
		t.Errorf("name alias should parse, got %q", ev.Name)
	}
	if ev.Impact != ImpactMedium {
		t.Errorf("expected MEDIUM, got %s", ev.Impact)
	}
	if len(ev.AffectedPairs) != 2 {
		t.Errorf("array pairs should parse, got %v", ev.AffectedPairs)
	}
}

func TestParseCalendarLineRejectsIncomplete(t *testing.T) {
	if _, err := ParseCalendarLine([]byte(`{"event_date":"2026-03-02"}`)); err == nil {
		t.Error("entry without a name should be rejected")
	}
	if _, err := ParseCalendarLine([]byte(`{"event_name":"NFP"}`)); err == nil {
		t.Error("entry without a date should be rejected")
	}
	if _, err := ParseCalendarLine([]byte(`{"event_name":"NFP","event_date":"March 2nd"}`)); err == nil {
		t.Error("unparseable date should be rejected")
	}
	if _, err := ParseCalendarLine([]byte(`not json`)); err == nil {
		t.Error("malformed JSON should be rejected")
	}
}

func TestReadCalendarSkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"event_name":"CPI","event_date":"2026-03-02 13:30","currency":"USD","impact":"High"}`,
		`garbage line`,
		``,
		`{"event_name":"GDP","event_date":"2026-03-03","currency":"EUR","impact":"Low"}`,
	}, "\n")

	events, err := ReadCalendar(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 valid events, got %d", len(events))
	}
	if events[0].Name != "CPI" || events[1].Name != "GDP" {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestToEventDerivesSentiment(t *testing.T) {
	beat := CalendarEvent{
		Name: "CPI", Currency: "USD", Impact: ImpactHigh,
		Actual: "3.6%", Previous: "3.0%",
	}
	ev := beat.ToEvent()
	if ev.Sentiment <= 0 {
		t.Errorf("beating the previous reading should be positive, got %.3f", ev.Sentiment)
	}

	miss := CalendarEvent{
		Name: "CPI", Currency: "USD", Impact: ImpactHigh,
		Actual: "2.4%", Previous: "3.0%",
	}
	if s := miss.ToEvent().Sentiment; s >= 0 {
		t.Errorf("missing the previous reading should be negative, got %.3f", s)
	}

	// Falls back to forecast when no actual has been published
	upcoming := CalendarEvent{
		Name: "CPI", Currency: "USD", Impact: ImpactHigh,
		Forecast: "3.6%", Previous: "3.0%",
	}
	if s := upcoming.ToEvent().Sentiment; s <= 0 {
		t.Errorf("forecast above previous should be positive, got %.3f", s)
	}

	// Unparseable values give neutral sentiment
	vague := CalendarEvent{Name: "Speech", Currency: "USD", Impact: ImpactLow, Actual: "hawkish"}
	if s := vague.ToEvent().Sentiment; s != 0 {
		t.Errorf("non-numeric readings should stay neutral, got %.3f", s)
	}
}

func TestToEventClampsSentiment(t *testing.T) {
	spike := CalendarEvent{
		Name: "Claims", Currency: "USD", Impact: ImpactHigh,
		Actual: "900K", Previous: "100K",
	}
	if s := spike.ToEvent().Sentiment; s != 1 {
		t.Errorf("sentiment must clamp to [-1, 1], got %.3f", s)
	}
}
