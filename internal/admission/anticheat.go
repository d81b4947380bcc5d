package admission

import "github.com/wurlus/platform/internal/domain"

// Anti-cheat thresholds for late bets on a clearly winning team.
const (
	antiCheatMinDiff    = 2
	antiCheatMinMinute  = 45
	antiCheatLateMinute = 60
	antiCheatOddsLate   = 1.5
	antiCheatOddsEarly  = 1.8
)

// SuspiciousOdds flags a match-winner bet placed on the winning team late in
// the game at odds the market would never offer. Only runs with verified
// scores; bets on the losing team are never flagged.
func SuspiciousOdds(lookup domain.EventLookup, outcomeID, prediction string, odds float64) bool {
	if !lookup.HasScore || !lookup.HasMinute {
		return false
	}
	diff := lookup.HomeScore - lookup.AwayScore
	if diff < 0 {
		diff = -diff
	}
	if diff < antiCheatMinDiff || lookup.Minute < antiCheatMinMinute {
		return false
	}

	var winning string
	if lookup.HomeScore > lookup.AwayScore {
		winning = "home"
	} else {
		winning = "away"
	}
	side := TeamSide(outcomeID, prediction, lookup.HomeTeam, lookup.AwayTeam)
	if side == "" || side != winning {
		return false
	}

	threshold := antiCheatOddsEarly
	if lookup.Minute >= antiCheatLateMinute {
		threshold = antiCheatOddsLate
	}
	return odds > threshold
}
