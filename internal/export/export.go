// Package export turns a profile's medications and dose logs into
// downloadable CSV, PDF and XLSX reports.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/tracker"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// RangeKind selects how logs are filtered by date.
type RangeKind string

const (
	RangeLastDays RangeKind = "last_days"
	RangeAll      RangeKind = "all"
	RangeCustom   RangeKind = "custom"
)

// DefaultDays is the last_days period when none is given.
const DefaultDays = 30

// Range is a date filter over dose log timestamps.
type Range struct {
	Kind  RangeKind `json:"kind"`
	Days  int       `json:"days,omitempty"`
	Start string    `json:"start,omitempty"`
	End   string    `json:"end,omitempty"`
}

// ParseRange reads a range from request parameters. An empty kind means the
// last DefaultDays days.
func ParseRange(kind, days, start, end string) (Range, error) {
	r := Range{Kind: RangeKind(kind), Start: start, End: end}
	if r.Kind == "" {
		r.Kind = RangeLastDays
	}
	if days != "" {
		n, err := strconv.Atoi(days)
		if err != nil {
			return Range{}, apperrors.Validation("invalid days %q", days)
		}
		r.Days = n
	}
	return r, r.Validate()
}

// Validate checks that the range can be applied.
func (r Range) Validate() error {
	switch r.Kind {
	case RangeAll:
		return nil
	case RangeLastDays:
		if r.Days < 0 {
			return apperrors.Validation("days must not be negative")
		}
		return nil
	case RangeCustom:
		start, err := time.Parse(dateLayout, r.Start)
		if err != nil {
			return apperrors.Validation("invalid start date %q", r.Start)
		}
		end, err := time.Parse(dateLayout, r.End)
		if err != nil {
			return apperrors.Validation("invalid end date %q", r.End)
		}
		if end.Before(start) {
			return apperrors.Validation("end date is before start date")
		}
		return nil
	default:
		return apperrors.Validation("unknown range %q", r.Kind)
	}
}

func (r Range) days() int {
	if r.Days == 0 {
		return DefaultDays
	}
	return r.Days
}

// Bounds returns the inclusive time bounds in now's location. A zero bound
// is open.
func (r Range) Bounds(now time.Time) (from, to time.Time) {
	loc := now.Location()
	switch r.Kind {
	case RangeLastDays:
		return now.AddDate(0, 0, -r.days()), time.Time{}
	case RangeCustom:
		start, err1 := tracker.ParseDay(r.Start, loc)
		end, err2 := tracker.ParseDay(r.End, loc)
		if err1 != nil || err2 != nil {
			return time.Time{}, time.Time{}
		}
		return start, end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	default:
		return time.Time{}, time.Time{}
	}
}

// Filter keeps the logs inside the range, in their original order.
func (r Range) Filter(logs []tracker.DoseLog, now time.Time) []tracker.DoseLog {
	from, to := r.Bounds(now)
	out := tracker.DoseLogs(logs).Query(tracker.Between(from, to))
	if out == nil {
		out = []tracker.DoseLog{}
	}
	return out
}

// Label describes the period for report headers.
func (r Range) Label() string {
	switch r.Kind {
	case RangeAll:
		return "All time"
	case RangeCustom:
		return r.Start + " to " + r.End
	default:
		return fmt.Sprintf("Last %d days", r.days())
	}
}

// Summary counts the filtered logs.
type Summary struct {
	Medications int `json:"medications"`
	Logs        int `json:"logs"`
	Taken       int `json:"taken"`
	Missed      int `json:"missed"`
	Adherence   int `json:"adherence"`
}

// Report is everything a writer renders.
type Report struct {
	Profile     string
	Generated   time.Time
	Range       Range
	Medications []tracker.Medication
	Logs        []tracker.DoseLog
	Summary     Summary

	meds map[string]tracker.Medication
}

// NewReport filters logs by r and computes the summary.
func NewReport(profile string, meds []tracker.Medication, logs []tracker.DoseLog, r Range, now time.Time) *Report {
	filtered := r.Filter(logs, now)
	rep := &Report{
		Profile:     profile,
		Generated:   now,
		Range:       r,
		Medications: meds,
		Logs:        filtered,
		meds:        make(map[string]tracker.Medication, len(meds)),
	}
	for _, m := range meds {
		rep.meds[m.ID] = m
	}

	set := tracker.DoseLogs(filtered)
	rep.Summary = Summary{
		Medications: len(meds),
		Logs:        len(filtered),
		Taken:       set.Count(tracker.WithStatus(tracker.StatusTaken)),
		Missed:      set.Count(tracker.WithStatus(tracker.StatusMissed)),
	}
	rep.Summary.Adherence = tracker.Percent(rep.Summary.Taken, rep.Summary.Logs)
	return rep
}

// Header is the column row of the CSV and the Logs sheet.
var Header = []string{"Date", "Time", "Medication", "Dosage", "Category", "Status", "Scheduled Time", "Actual Time", "Notes"}

// Rows returns the header, a blank row, the summary row and one row per log.
func (r *Report) Rows() [][]string {
	rows := make([][]string, 0, len(r.Logs)+3)
	rows = append(rows, Header)
	rows = append(rows, make([]string, len(Header)))
	rows = append(rows, []string{
		"SUMMARY",
		"",
		fmt.Sprintf("Total Medications: %d", r.Summary.Medications),
		fmt.Sprintf("Total Logs: %d", r.Summary.Logs),
		fmt.Sprintf("Taken: %d", r.Summary.Taken),
		fmt.Sprintf("Adherence: %d%%", r.Summary.Adherence),
		"",
		"",
		"Profile: " + r.Profile,
	})
	for _, l := range r.Logs {
		rows = append(rows, r.logRow(l))
	}
	return rows
}

func (r *Report) logRow(l tracker.DoseLog) []string {
	med, ok := r.meds[l.MedicationID]
	name := med.Name
	if !ok {
		name = "Unknown"
	}
	ts := l.Timestamp.In(r.Generated.Location())
	row := []string{
		ts.Format(dateLayout),
		ts.Format(timeLayout),
		name,
		med.Dosage,
		string(med.Category),
		string(l.Status),
		"",
		"",
		l.Notes,
	}
	if !l.ScheduledTime.IsZero() {
		row[6] = l.ScheduledTime.In(r.Generated.Location()).Format(timeLayout)
	}
	if l.ActualTime != nil {
		row[7] = l.ActualTime.In(r.Generated.Location()).Format(timeLayout)
	}
	return row
}

// Format is an output file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts csv, pdf and xlsx case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatPDF, FormatXLSX:
		return f, nil
	default:
		return "", apperrors.Validation("unknown export format %q", s)
	}
}

// ContentType is the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Write renders the report in format f.
func (r *Report) Write(w io.Writer, f Format) error {
	switch f {
	case FormatCSV:
		return r.WriteCSV(w)
	case FormatPDF:
		return r.WritePDF(w)
	case FormatXLSX:
		return r.WriteXLSX(w)
	default:
		return apperrors.Validation("unknown export format %q", f)
	}
}

// FileName names a download: medtrack-report-<profile>-<date>.pdf for PDF,
// medtrack-data-<profile>-<date>.<ext> otherwise.
func FileName(f Format, profile string, now time.Time) string {
	profile = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ':':
			return '-'
		}
		return r
	}, profile)
	kind := "data"
	if f == FormatPDF {
		kind = "report"
	}
	return fmt.Sprintf("medtrack-%s-%s-%s.%s", kind, profile, now.Format(dateLayout), f)
}
