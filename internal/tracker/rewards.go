package tracker

// Point values awarded by the rewards fold.
const (
	FirstLogBonus     = 50
	BasePoints        = 10
	OnTimePoints      = 5
	WeekStreakBonus   = 20
	MonthStreakBonus  = 50
	WeekStreakDays    = 7
	MonthStreakDays   = 30
	PointsPerLevel    = 100
	PointsMilestone   = 500
	CelebrationPeriod = 3 // seconds the first-log celebration stays up
)

// Achievement is the key of an unlockable badge.
type Achievement string

const (
	AchievementFirstLog    Achievement = "first-log"
	AchievementWeekStreak  Achievement = "week-streak"
	AchievementMonthStreak Achievement = "month-streak"
	AchievementPoints500   Achievement = "points-500"
	AchievementPerfectWeek Achievement = "perfect-week"
	AchievementEarlyBird   Achievement = "early-bird"
)

// AchievementInfo describes a badge for display.
type AchievementInfo struct {
	Key         Achievement `json:"key"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Icon        string      `json:"icon"`
	Points      int         `json:"points"`
}

// Catalog lists every badge in display order. perfect-week and early-bird are
// shown but never awarded by Fold.
var Catalog = []AchievementInfo{
	{AchievementFirstLog, "First Steps", "Logged your first dose", "🎯", FirstLogBonus},
	{AchievementWeekStreak, "Week Warrior", "7 days in a row", "🔥", 50},
	{AchievementMonthStreak, "Monthly Master", "30 days in a row", "🏆", 100},
	{AchievementPoints500, "Point Collector", "Earned 500 points", "💎", 0},
	{AchievementPerfectWeek, "Perfect Week", "100% adherence for 7 days", "⭐", 75},
	{AchievementEarlyBird, "Early Bird", "10 on-time doses", "🌅", 25},
}

// RewardsState is the accumulated gamification state of one user.
type RewardsState struct {
	Points       int           `json:"points"`
	Streak       int           `json:"streak"`
	Level        int           `json:"level"`
	Achievements []Achievement `json:"achievements"`
	LastLogDate  string        `json:"lastLogDate,omitempty"`
	HasFirstLog  bool          `json:"hasFirstLog"`
}

// NewRewards returns the zero state every user starts from.
func NewRewards() RewardsState {
	return RewardsState{Level: 1, Achievements: []Achievement{}}
}

// LevelFor derives the level from a points total.
func LevelFor(points int) int {
	return points/PointsPerLevel + 1
}

// Has reports whether a is already unlocked.
func (r RewardsState) Has(a Achievement) bool {
	for _, got := range r.Achievements {
		if got == a {
			return true
		}
	}
	return false
}

// ProgressToNextLevel is the points earned inside the current level.
func (r RewardsState) ProgressToNextLevel() int {
	return r.Points % PointsPerLevel
}

// PointsNeeded is the points left before the next level.
func (r RewardsState) PointsNeeded() int {
	return PointsPerLevel - r.ProgressToNextLevel()
}

// LevelTitle names the level bracket.
func LevelTitle(level int) string {
	switch {
	case level >= 10:
		return "Master"
	case level >= 5:
		return "Expert"
	case level >= 3:
		return "Advanced"
	default:
		return "Beginner"
	}
}

// FoldResult is the outcome of folding one taken log into the rewards state.
type FoldResult struct {
	State        RewardsState  `json:"rewards"`
	FirstLog     bool          `json:"firstLog"`
	PointsEarned int           `json:"pointsEarned"`
	Unlocked     []Achievement `json:"unlocked,omitempty"`
}

// Fold applies one taken dose to cur and returns the replacement state.
// It must run exactly once per taken log; it has no memory of which logs it
// has already seen.
func Fold(cur RewardsState, log DoseLog) FoldResult {
	next := cur
	next.Achievements = append([]Achievement(nil), cur.Achievements...)
	res := FoldResult{}

	unlock := func(a Achievement, bonus int) {
		next.Achievements = append(next.Achievements, a)
		next.Points += bonus
		res.Unlocked = append(res.Unlocked, a)
	}

	if !cur.HasFirstLog {
		unlock(AchievementFirstLog, FirstLogBonus)
		next.HasFirstLog = true
		res.FirstLog = true
	}

	next.Points += BasePoints
	if !log.IsLate {
		next.Points += OnTimePoints
	}

	logDate := DayOf(log.Timestamp)
	switch {
	case cur.LastLogDate == logDate:
	case cur.LastLogDate != "" && cur.LastLogDate == previousDay(logDate):
		next.Streak = cur.Streak + 1
	default:
		next.Streak = 1
	}

	// Streak bonuses are paid on every fold at or past the threshold.
	if next.Streak >= WeekStreakDays {
		next.Points += WeekStreakBonus
	}
	if next.Streak >= MonthStreakDays {
		next.Points += MonthStreakBonus
	}

	next.Level = LevelFor(next.Points)

	if next.Streak == WeekStreakDays && !next.Has(AchievementWeekStreak) {
		unlock(AchievementWeekStreak, 50)
	}
	if next.Streak == MonthStreakDays && !next.Has(AchievementMonthStreak) {
		unlock(AchievementMonthStreak, 100)
	}
	if next.Points >= PointsMilestone && !next.Has(AchievementPoints500) {
		unlock(AchievementPoints500, 0)
	}

	next.Level = LevelFor(next.Points)
	next.LastLogDate = logDate

	res.State = next
	res.PointsEarned = next.Points - cur.Points
	return res
}
