package types

// Severity grades how low a battery is relative to its configured thresholds.
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityNormal:
		return "normal"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Icon is the emoji prefix used in alert messages.
func (s Severity) Icon() string {
	switch s {
	case SeverityNormal:
		return "🟢"
	case SeverityWarning:
		return "🟠"
	default:
		return "🔴"
	}
}

// SeverityFor counts the thresholds the reading is at or below, capped at critical.
// A lower soc never yields a lower severity.
func SeverityFor(soc float64, thresholds []float64) Severity {
	crossed := 0
	for _, t := range thresholds {
		if soc <= t {
			crossed++
		}
	}
	if crossed > int(SeverityCritical) {
		return SeverityCritical
	}
	return Severity(crossed)
}
