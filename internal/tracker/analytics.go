package tracker

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"
)

const (
	weeklyDays       = 7
	heatmapMonths    = 3
	heatmapBucket    = 25.0
	heatmapIntensity = 4
)

// DailyAdherence is one day of the weekly trend.
type DailyAdherence struct {
	Date     string `json:"date"`
	Weekday  string `json:"day"`
	Taken    int    `json:"taken"`
	Expected int    `json:"expected"`
	Percent  int    `json:"adherence"`
}

// MedicationAdherence is the log breakdown for one medication.
type MedicationAdherence struct {
	MedicationID string   `json:"medicationId"`
	Name         string   `json:"name"`
	Category     Category `json:"category"`
	Taken        int      `json:"taken"`
	Missed       int      `json:"missed"`
	Skipped      int      `json:"skipped"`
	Total        int      `json:"total"`
	Percent      int      `json:"adherence"`
}

// CategoryAdherence aggregates every medication sharing a category.
type CategoryAdherence struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
	Taken    int      `json:"taken"`
	Total    int      `json:"total"`
	Percent  int      `json:"adherence"`
}

// Overall summarizes every log.
type Overall struct {
	TotalLogs int `json:"totalLogs"`
	Taken     int `json:"taken"`
	Missed    int `json:"missed"`
	Skipped   int `json:"skipped"`
	Percent   int `json:"adherence"`
}

// Lateness aggregates taken doses by punctuality.
type Lateness struct {
	LateCount          int `json:"lateDoses"`
	OnTimeCount        int `json:"onTimeDoses"`
	AverageMinutesLate int `json:"averageLateness"`
	MedianMinutesLate  int `json:"medianLateness"`
}

// HeatmapDay is one calendar cell.
type HeatmapDay struct {
	Date      string `json:"date"`
	Taken     int    `json:"taken"`
	Missed    int    `json:"missed"`
	Expected  int    `json:"expected"`
	Percent   int    `json:"adherenceRate"`
	Intensity int    `json:"intensity"`
	HasMissed bool   `json:"hasMissed"`
}

// Report is the full analytics projection.
type Report struct {
	Weekly      []DailyAdherence      `json:"weekly"`
	Medications []MedicationAdherence `json:"medications"`
	Categories  []CategoryAdherence   `json:"categories"`
	Overall     Overall               `json:"overall"`
	Lateness    Lateness              `json:"lateness"`
	Heatmap     []HeatmapDay          `json:"heatmap"`
}

// Analyze projects adherence figures from a profile's medications and logs.
// Calendar days are judged in now's location.
func Analyze(meds []Medication, logs []DoseLog, now time.Time) Report {
	return Report{
		Weekly:      WeeklyAdherence(meds, logs, now),
		Medications: MedicationBreakdown(meds, logs),
		Categories:  CategoryBreakdown(meds, logs),
		Overall:     OverallAdherence(logs),
		Lateness:    LatenessSummary(logs),
		Heatmap:     Heatmap(meds, logs, now),
	}
}

// Percent returns round(n/d*100), or 0 when d is 0.
func Percent(n, d int) int {
	if d == 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(d) * 100))
}

type dayCounts struct {
	taken, missed, expected int
}

func countDay(meds []Medication, logs []DoseLog, day time.Time) dayCounts {
	var c dayCounts
	for _, l := range logs {
		if !sameDay(day, l.Timestamp) {
			continue
		}
		switch l.Status {
		case StatusTaken:
			c.taken++
		case StatusMissed:
			c.missed++
		case StatusSkipped:
		}
	}
	for _, m := range meds {
		if m.ActiveOn(day) {
			c.expected += m.Frequency
		}
	}
	return c
}

// WeeklyAdherence covers the last seven calendar days, oldest first.
func WeeklyAdherence(meds []Medication, logs []DoseLog, now time.Time) []DailyAdherence {
	out := make([]DailyAdherence, 0, weeklyDays)
	today := startOfDay(now)
	for i := weeklyDays - 1; i >= 0; i-- {
		day := time.Date(today.Year(), today.Month(), today.Day()-i, 0, 0, 0, 0, today.Location())
		c := countDay(meds, logs, day)
		out = append(out, DailyAdherence{
			Date:     DayOf(day),
			Weekday:  day.Weekday().String()[:3],
			Taken:    c.taken,
			Expected: c.expected,
			Percent:  Percent(c.taken, c.expected),
		})
	}
	return out
}

// MedicationBreakdown divides taken by all logs per medication, not by
// frequency.
func MedicationBreakdown(meds []Medication, logs []DoseLog) []MedicationAdherence {
	out := make([]MedicationAdherence, 0, len(meds))
	for _, m := range meds {
		row := MedicationAdherence{MedicationID: m.ID, Name: m.Name, Category: m.Category}
		for _, l := range logs {
			if l.MedicationID != m.ID {
				continue
			}
			row.Total++
			switch l.Status {
			case StatusTaken:
				row.Taken++
			case StatusMissed:
				row.Missed++
			case StatusSkipped:
				row.Skipped++
			}
		}
		row.Percent = Percent(row.Taken, row.Total)
		out = append(out, row)
	}
	return out
}

// CategoryBreakdown aggregates per category in first-seen order.
func CategoryBreakdown(meds []Medication, logs []DoseLog) []CategoryAdherence {
	index := make(map[Category]int)
	var out []CategoryAdherence
	for _, row := range MedicationBreakdown(meds, logs) {
		i, ok := index[row.Category]
		if !ok {
			i = len(out)
			index[row.Category] = i
			out = append(out, CategoryAdherence{Category: row.Category})
		}
		out[i].Count++
		out[i].Taken += row.Taken
		out[i].Total += row.Total
	}
	for i := range out {
		out[i].Percent = Percent(out[i].Taken, out[i].Total)
	}
	if out == nil {
		out = []CategoryAdherence{}
	}
	return out
}

// OverallAdherence counts every log regardless of medication.
func OverallAdherence(logs []DoseLog) Overall {
	var o Overall
	for _, l := range logs {
		o.TotalLogs++
		switch l.Status {
		case StatusTaken:
			o.Taken++
		case StatusMissed:
			o.Missed++
		case StatusSkipped:
			o.Skipped++
		}
	}
	o.Percent = Percent(o.Taken, o.TotalLogs)
	return o
}

// LatenessSummary aggregates minutes late across taken doses.
func LatenessSummary(logs []DoseLog) Lateness {
	var out Lateness
	var late []float64
	for _, l := range logs {
		if l.Status != StatusTaken {
			continue
		}
		if l.IsLate {
			out.LateCount++
			late = append(late, float64(l.MinutesLate))
		} else {
			out.OnTimeCount++
		}
	}
	if len(late) == 0 {
		return out
	}
	if mean, err := stats.Mean(late); err == nil {
		out.AverageMinutesLate = int(math.Round(mean))
	}
	if median, err := stats.Median(late); err == nil {
		out.MedianMinutesLate = int(math.Round(median))
	}
	return out
}

// Heatmap spans the first day of the month two months back through the last
// day of the current month. Days with a missed dose are flagged regardless of
// their intensity bucket.
func Heatmap(meds []Medication, logs []DoseLog, now time.Time) []HeatmapDay {
	start := time.Date(now.Year(), now.Month()-(heatmapMonths-1), 1, 0, 0, 0, 0, now.Location())
	end := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location())

	var out []HeatmapDay
	for day := start; !day.After(end); day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location()) {
		c := countDay(meds, logs, day)
		rate := 0.0
		if c.expected > 0 {
			rate = float64(c.taken) / float64(c.expected) * 100
		}
		intensity := int(math.Round(rate / heatmapBucket))
		if intensity > heatmapIntensity {
			intensity = heatmapIntensity
		}
		out = append(out, HeatmapDay{
			Date:      DayOf(day),
			Taken:     c.taken,
			Missed:    c.missed,
			Expected:  c.expected,
			Percent:   int(math.Round(rate)),
			Intensity: intensity,
			HasMissed: c.missed > 0,
		})
	}
	return out
}
