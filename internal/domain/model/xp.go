package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultDailyVocabXPCap bounds the vocab XP a learner earns per local day.
const DefaultDailyVocabXPCap int64 = 60

const dayLayout = "2006-01-02"

// XPEvent is one append-only ledger row.
type XPEvent struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Amount    int64          `json:"amount"`
	Source    string         `json:"source"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AwardXPResult reports the outcome of one award attempt.
type AwardXPResult struct {
	Requested  int64   `json:"requested"`
	Awarded    int64   `json:"awarded"`
	Multiplier float64 `json:"multiplier"`
	Capped     bool    `json:"capped"`
	TotalToday int64   `json:"totalToday"`
	DayISO     string  `json:"dayIso"`
}

// MultiplierForPlan scales vocab XP by subscription tier.
func MultiplierForPlan(p PlanID) float64 {
	switch p {
	case PlanStarter:
		return 1.1
	case PlanBooster:
		return 1.25
	case PlanMaster:
		return 1.5
	}
	return 1
}

// RequestedXP is round(max(0, base) * multiplier).
func RequestedXP(base float64, multiplier float64) int64 {
	if math.IsNaN(base) || math.IsInf(base, 0) || base < 0 {
		base = 0
	}
	v := math.Round(base * multiplier)
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// Window is a half-open [Start, End) interval in UTC.
type Window struct {
	Start  time.Time
	End    time.Time
	DayISO string
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// DayWindow returns the local day in loc that contains now, or the day
// named by dayISO (YYYY-MM-DD) when non-empty.
func DayWindow(loc *time.Location, dayISO string, now time.Time) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	var y int
	var m time.Month
	var d int
	if dayISO != "" {
		t, err := time.ParseInLocation(dayLayout, strings.TrimSpace(dayISO), loc)
		if err != nil {
			return Window{}, fmt.Errorf("invalid day %q: %w", dayISO, err)
		}
		y, m, d = t.Date()
	} else {
		y, m, d = now.In(loc).Date()
	}
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	return Window{
		Start:  start.UTC(),
		End:    end.UTC(),
		DayISO: start.Format(dayLayout),
	}, nil
}

// Vocabulary activity base amounts.
const (
	XPMeaningCorrect       int64 = 10
	XPSentenceBase         int64 = 15
	XPSentencePerfectBonus int64 = 5
	XPSynonymsMax          int64 = 10
)

func BaseXPForMeaning(correct bool) int64 {
	if correct {
		return XPMeaningCorrect
	}
	return 0
}

// BaseXPForSentence adds the perfect bonus for scores of 3 and above.
func BaseXPForSentence(score int) int64 {
	if score >= 3 {
		return XPSentenceBase + XPSentencePerfectBonus
	}
	return XPSentenceBase
}

type SynonymRound struct {
	Accuracy float64 `json:"accuracy"`
	Score    int64   `json:"score"`
	BaseXP   int64   `json:"baseXp"`
}

// ComputeSynonymRound scores a timed synonym round out of 100.
func ComputeSynonymRound(totalTargets, netCorrect int, elapsed time.Duration) SynonymRound {
	total := max(0, totalTargets)
	correct := min(max(0, netCorrect), total)

	var accuracy float64
	perTarget := elapsed
	if total > 0 {
		accuracy = float64(correct) / float64(total)
		perTarget = elapsed / time.Duration(total)
	}

	var bonus float64
	switch {
	case perTarget <= 4*time.Second:
		bonus = 20
	case perTarget <= 7*time.Second:
		bonus = 12
	case perTarget <= 11*time.Second:
		bonus = 6
	case perTarget <= 15*time.Second:
		bonus = 2
	}

	score := min(max(int64(math.Round(accuracy*80+bonus)), 0), 100)
	return SynonymRound{
		Accuracy: accuracy,
		Score:    score,
		BaseXP:   min(XPSynonymsMax, int64(math.Round(float64(score)/10))),
	}
}

// WritingAttempt is a finished writing mock exam.
type WritingAttempt struct {
	CurrentOverall  float64       `json:"currentOverall"`
	PreviousOverall *float64      `json:"previousOverall,omitempty"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	SubmittedAt     *time.Time    `json:"submittedAt,omitempty"`
	Duration        time.Duration `json:"-"`
}

type WritingXP struct {
	Points int64  `json:"points"`
	Reason string `json:"reason"`
}

// CalculateWritingXP awards 20 for finishing, 10 for improving on the
// previous band and 5 for submitting within an hour.
func CalculateWritingXP(a WritingAttempt) WritingXP {
	points := int64(20)
	reasons := []string{"Completed writing mock exam"}

	if a.PreviousOverall != nil && a.CurrentOverall > *a.PreviousOverall {
		points += 10
		reasons = append(reasons, "Improved overall band score")
	}

	d := a.Duration
	if d <= 0 && a.StartedAt != nil && a.SubmittedAt != nil && a.SubmittedAt.After(*a.StartedAt) {
		d = a.SubmittedAt.Sub(*a.StartedAt).Round(time.Second)
	}
	if d > 0 && d <= time.Hour {
		points += 5
		reasons = append(reasons, "Submitted within the 60 minute window")
	}

	return WritingXP{Points: points, Reason: strings.Join(reasons, " · ")}
}
