package scoring

import (
	"fmt"
	"strings"
)

// Tier is a named skill bracket derived from accumulated points.
type Tier string

const (
	TierBeginner     Tier = "Beginner"
	TierNovice       Tier = "Novice"
	TierIntermediate Tier = "Intermediate"
	TierAdvanced     Tier = "Advanced"
	TierExpert       Tier = "Expert"
)

// TierAll is the leaderboard filter value that disables tier filtering.
const TierAll = "all"

type tierRange struct {
	tier Tier
	min  int
	max  int
}

// tierRanges is both the classification table (lower bounds) and the
// progress-bar range table (upper bounds). Classification treats Expert as
// open-ended; only the bar uses its 300 cap.
var tierRanges = []tierRange{
	{TierBeginner, 0, 100},
	{TierNovice, 101, 150},
	{TierIntermediate, 151, 200},
	{TierAdvanced, 201, 250},
	{TierExpert, 251, 300},
}

// Tiers returns all tiers in ascending order.
func Tiers() []Tier {
	out := make([]Tier, len(tierRanges))
	for i, r := range tierRanges {
		out[i] = r.tier
	}
	return out
}

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	for _, r := range tierRanges {
		if strings.EqualFold(string(r.tier), strings.TrimSpace(s)) {
			return r.tier, nil
		}
	}
	return "", fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, s)
}

// Level returns the numeric level of the tier (Beginner=1 ... Expert=5), or 0 if unknown.
func (t Tier) Level() int {
	for i, r := range tierRanges {
		if r.tier == t {
			return i + 1
		}
	}
	return 0
}

// TierForLevel maps a numeric level back to its tier.
func TierForLevel(level int) (Tier, error) {
	if level < 1 || level > len(tierRanges) {
		return "", fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	return tierRanges[level-1].tier, nil
}

// TierForPoints classifies an accumulated point total.
func TierForPoints(points int) (Tier, error) {
	if points < 0 {
		return "", fmt.Errorf("%w: negative points %d", ErrInvalidInput, points)
	}
	tier := TierBeginner
	for _, r := range tierRanges {
		if points >= r.min {
			tier = r.tier
		}
	}
	return tier, nil
}

// Progress describes where a point total sits inside its tier's display range.
type Progress struct {
	Tier      Tier    `json:"tier"`
	Points    int     `json:"points"`
	Min       int     `json:"min"`
	Max       int     `json:"max"`
	Remaining int     `json:"remaining"`
	Next      Tier    `json:"next,omitempty"`
	Completed bool    `json:"completed"`
	Percent   float64 `json:"percent"`
}

// PointsToNextTier reports how many points remain until the end of the tier's
// display range. Expert is always reported as completed with nothing remaining
// and no next tier.
func PointsToNextTier(tier Tier, points int) (Progress, error) {
	if points < 0 {
		return Progress{}, fmt.Errorf("%w: negative points %d", ErrInvalidInput, points)
	}
	level := tier.Level()
	if level == 0 {
		return Progress{}, fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, tier)
	}
	r := tierRanges[level-1]
	p := Progress{
		Tier:      tier,
		Points:    points,
		Min:       r.min,
		Max:       r.max,
		Remaining: max(0, r.max-points),
		Percent:   withinTierPercent(r, points),
	}
	if tier == TierExpert {
		p.Remaining = 0
		p.Completed = true
		return p, nil
	}
	p.Next = tierRanges[level].tier
	p.Completed = p.Remaining == 0
	return p, nil
}

func withinTierPercent(r tierRange, points int) float64 {
	span := float64(r.max - r.min)
	pct := float64(points-r.min) / span * 100
	return min(max(pct, 0), 100)
}

// LevelState is a candidate's accumulated points with the tier derived from them.
type LevelState struct {
	Tier        Tier `json:"tier"`
	TotalPoints int  `json:"total_points"`
}

// NewLevelState returns the default state for a candidate with no activity.
func NewLevelState() LevelState {
	return LevelState{Tier: TierBeginner}
}

// AddPoints returns the state after earning points, with the tier re-derived.
func (s LevelState) AddPoints(points int) (LevelState, error) {
	if points < 0 {
		return s, fmt.Errorf("%w: negative points %d", ErrInvalidInput, points)
	}
	total := s.TotalPoints + points
	tier, err := TierForPoints(total)
	if err != nil {
		return s, err
	}
	return LevelState{Tier: tier, TotalPoints: total}, nil
}

// Normalize recomputes the tier from the point total. The second return value
// reports whether the stored tier had drifted from the threshold table.
func (s LevelState) Normalize() (LevelState, bool, error) {
	tier, err := TierForPoints(s.TotalPoints)
	if err != nil {
		return s, false, err
	}
	drifted := tier != s.Tier
	s.Tier = tier
	return s, drifted, nil
}

// metricUnlockThresholds are the point totals at which another result metric card unlocks.
var metricUnlockThresholds = []int{100, 150, 200, 250, 300}

// UnlockedMetrics returns how many result metric cards a point total unlocks (1 to 6).
func UnlockedMetrics(points int) int {
	n := 1
	for _, t := range metricUnlockThresholds {
		if points >= t {
			n++
		}
	}
	return n
}
