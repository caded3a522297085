package timestamp

import (
	"regexp"
	"strings"
	"time"
)

// Result holds the outcome of scanning free text for a leading timestamp.
// When Found is false, Remaining carries the original text unchanged.
type Result struct {
	Found     bool
	Timestamp time.Time
	Remaining string
}

// Parser extracts timestamps from device output. Devices report in a mix of
// ISO-8601, syslog, bare clock times, and unix epoch numbers, so the parser
// tries the common shapes in decreasing order of specificity.
type Parser struct {
	now func() time.Time
}

// NewParser creates a timestamp parser using the system clock for formats
// that omit the date.
func NewParser() *Parser {
	return &Parser{now: time.Now}
}

var (
	isoPrefix      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d{1,9})?(?:Z|[+-]\d{2}:?\d{2})?`)
	syslogPrefix   = regexp.MustCompile(`^[A-Z][a-z]{2} +\d{1,2} \d{2}:\d{2}:\d{2}`)
	timeOnlyPrefix = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}(?:[.,]\d{1,9})?`)

	severityPrefix = regexp.MustCompile(`(?i)^(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|CRITICAL|FATAL)\b[:\- ]*`)
)

// Layouts tried for full date-time strings. Comma decimals are normalized to
// dots before matching, so only dot forms appear here.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseFromText scans the start of text for a timestamp. On a match it
// returns the parsed time and the text after the timestamp.
func (p *Parser) ParseFromText(text string) Result {
	if m := isoPrefix.FindString(text); m != "" {
		if ts, ok := p.parseDateTime(m); ok {
			return Result{Found: true, Timestamp: ts, Remaining: strings.TrimLeft(text[len(m):], " \t")}
		}
	}

	if m := syslogPrefix.FindString(text); m != "" {
		if ts, ok := p.parseSyslog(m); ok {
			return Result{Found: true, Timestamp: ts, Remaining: strings.TrimLeft(text[len(m):], " \t")}
		}
	}

	if m := timeOnlyPrefix.FindString(text); m != "" {
		if ts, ok := p.parseClock(m); ok {
			return Result{Found: true, Timestamp: ts, Remaining: strings.TrimLeft(text[len(m):], " \t")}
		}
	}

	return Result{Remaining: text}
}

// ParseTimestamp parses a timestamp of unknown wire type: an ISO-8601 string
// or a unix epoch number. Epoch magnitude selects the unit: values up to 1e9
// are seconds, up to 1e12 milliseconds, up to 1e15 microseconds, and larger
// values nanoseconds.
func (p *Parser) ParseTimestamp(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		return p.parseDateTime(s)
	case float64:
		return parseUnixTimestamp(v)
	case int64:
		return parseUnixTimestamp(float64(v))
	case int:
		return parseUnixTimestamp(float64(v))
	case uint64:
		return parseUnixTimestamp(float64(v))
	default:
		return time.Time{}, false
	}
}

// ExtractMessage strips a leading timestamp and severity token from a raw
// device line, returning the human part. The original line is returned when
// nothing recognizable leads it.
func (p *Parser) ExtractMessage(line string) string {
	rest := p.ParseFromText(line).Remaining
	rest = severityPrefix.ReplaceAllString(rest, "")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return strings.TrimSpace(line)
	}
	return rest
}

func (p *Parser) parseDateTime(s string) (time.Time, bool) {
	s = strings.Replace(s, ",", ".", 1)
	for _, layout := range dateTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func (p *Parser) parseSyslog(s string) (time.Time, bool) {
	normalized := strings.Join(strings.Fields(s), " ")
	ts, err := time.Parse("Jan 2 15:04:05", normalized)
	if err != nil {
		return time.Time{}, false
	}
	// Syslog timestamps carry no year; assume the current one.
	now := p.now()
	return time.Date(now.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), 0, time.Local), true
}

func (p *Parser) parseClock(s string) (time.Time, bool) {
	s = strings.Replace(s, ",", ".", 1)
	ts, err := time.Parse("15:04:05.999999999", s)
	if err != nil {
		return time.Time{}, false
	}
	now := p.now()
	return time.Date(now.Year(), now.Month(), now.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), time.Local), true
}

func parseUnixTimestamp(v float64) (time.Time, bool) {
	if v <= 0 {
		return time.Time{}, false
	}
	switch {
	case v <= 1e9:
		return time.Unix(int64(v), 0).UTC(), true
	case v <= 1e12:
		return time.UnixMilli(int64(v)).UTC(), true
	case v <= 1e15:
		return time.UnixMicro(int64(v)).UTC(), true
	default:
		return time.Unix(0, int64(v)).UTC(), true
	}
}
