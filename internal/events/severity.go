package events

import (
	"regexp"
	"strings"
)

// SeverityRegex matches common severity levels embedded in event text.
var SeverityRegex = regexp.MustCompile(`(?i)\b(DEBUG|INFO|NOTICE|WARN|WARNING|ERROR|ERR|FATAL|CRITICAL|ALERT|EMERG)\b`)

// NormalizeSeverity converts the severity spellings devices send into the
// four levels the event store keeps: INFO, WARN, ERROR, CRITICAL.
func NormalizeSeverity(severity string) string {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "TRACE", "DEBUG", "DBG", "NOTICE", "INFO", "INFORMATION", "INF":
		return "INFO"
	case "WARN", "WARNING", "WRNG", "WRN":
		return "WARN"
	case "ERROR", "ERR", "ERRO":
		return "ERROR"
	case "CRITICAL", "CRIT", "CRT", "FATAL", "FATL", "FTL", "PANIC", "ALERT", "EMERG", "EMERGENCY":
		return "CRITICAL"
	default:
		if len(normalized) >= 4 {
			switch normalized[:4] {
			case "INFO", "DEBU", "TRAC", "NOTI":
				return "INFO"
			case "WARN":
				return "WARN"
			case "ERRO":
				return "ERROR"
			case "CRIT", "FATA", "ALER", "EMER":
				return "CRITICAL"
			}
		}
		return "INFO"
	}
}

// ExtractSeverity pulls a severity level out of free-form event text.
// Text without a recognizable level is INFO.
func ExtractSeverity(message string) string {
	matches := SeverityRegex.FindStringSubmatch(message)
	if len(matches) > 1 {
		return NormalizeSeverity(matches[1])
	}
	return "INFO"
}

// SyslogLevelToSeverity maps numeric syslog levels (RFC 5424) onto the
// event store's levels. Out-of-range values are INFO.
func SyslogLevelToSeverity(level int) string {
	switch {
	case level >= 0 && level <= 2:
		return "CRITICAL"
	case level == 3:
		return "ERROR"
	case level == 4:
		return "WARN"
	default:
		return "INFO"
	}
}
