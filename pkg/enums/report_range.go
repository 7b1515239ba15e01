package enums

import "fmt"

// ReportRange is a named movement report window.
type ReportRange string

const (
	ReportRangeToday   ReportRange = "today"
	ReportRangeWeek    ReportRange = "week"
	ReportRangeMonth   ReportRange = "month"
	ReportRangeQuarter ReportRange = "quarter"
)

var validReportRanges = []ReportRange{
	ReportRangeToday,
	ReportRangeWeek,
	ReportRangeMonth,
	ReportRangeQuarter,
}

func (r ReportRange) IsValid() bool {
	for _, candidate := range validReportRanges {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReportRange converts raw input into ReportRange.
func ParseReportRange(value string) (ReportRange, error) {
	for _, candidate := range validReportRanges {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report range %q", value)
}
