package admission

import "strings"

// Market id families the pipeline branches on.
var matchWinnerPatterns = []string{"match_winner", "match_result", "1x2", "moneyline", "winner"}

// IsMatchWinnerMarket reports whether the market id belongs to the
// match-winner family.
func IsMatchWinnerMarket(marketID string) bool {
	id := strings.ToLower(marketID)
	for _, p := range matchWinnerPatterns {
		if strings.Contains(id, p) {
			return true
		}
	}
	return false
}

// IsFirstHalfMarket reports whether the market only covers the first half.
func IsFirstHalfMarket(marketID string) bool {
	return strings.Contains(strings.ToLower(marketID), "first_half")
}

// outcome-id patterns pointing at the home side
var homeOutcomes = map[string]bool{"home": true, "h": true, "1": true, "home_win": true}

// outcome-id patterns pointing at the away side
var awayOutcomes = map[string]bool{"away": true, "a": true, "2": true, "away_win": true}

// TeamSide resolves which team a selection backs, combining outcome-id
// patterns with a prediction substring match against lowercased team names.
// Returns "home", "away", or "" when undetermined.
func TeamSide(outcomeID, prediction, homeTeam, awayTeam string) string {
	id := strings.ToLower(strings.TrimSpace(outcomeID))
	if homeOutcomes[id] {
		return "home"
	}
	if awayOutcomes[id] {
		return "away"
	}

	pred := strings.ToLower(prediction)
	home := strings.ToLower(homeTeam)
	away := strings.ToLower(awayTeam)
	if home != "" && strings.Contains(pred, home) {
		return "home"
	}
	if away != "" && strings.Contains(pred, away) {
		return "away"
	}
	return ""
}
