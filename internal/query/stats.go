package query

import (
	"time"

	"taskmanager/internal/models"
)

// Stats summarizes the full task set, independent of any active filter.
type Stats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	TodayTotal     int     `json:"today_total"`
	TodayCompleted int     `json:"today_completed"`
	Overdue        int     `json:"overdue"`
	TodayProgress  float64 `json:"today_progress"`
	Progress       float64 `json:"progress"`
	AllTodayDone   bool    `json:"all_today_done"`
}

// ComputeStats counts tasks relative to now's calendar day. Percentages are
// in the range 0..100 and left unrounded.
func ComputeStats(tasks []models.Task, now time.Time) Stats {
	var s Stats
	s.Total = len(tasks)
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		}
		if DueToday(t, now) {
			s.TodayTotal++
			if t.Completed {
				s.TodayCompleted++
			}
		}
		if Overdue(t, now) {
			s.Overdue++
		}
	}

	s.TodayProgress = percent(s.TodayCompleted, s.TodayTotal)
	s.Progress = percent(s.Completed, s.Total)
	s.AllTodayDone = s.TodayTotal > 0 && s.TodayCompleted == s.TodayTotal
	return s
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
