package settlement

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wurlus/platform/internal/admission"
	"github.com/wurlus/platform/internal/domain"
)

// EventResult is a finished match as the settlement rules see it.
type EventResult struct {
	EventID     string
	HomeTeam    string
	AwayTeam    string
	HomeScore   int
	AwayScore   int
	HomeScoreHT int
	AwayScoreHT int
	HasHalfTime bool
}

// Winner returns "home", "away", or "draw" for the full-time score.
func (r EventResult) Winner() string {
	switch {
	case r.HomeScore > r.AwayScore:
		return "home"
	case r.AwayScore > r.HomeScore:
		return "away"
	default:
		return "draw"
	}
}

var lineRe = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

// parseLine extracts the first numeric line from an outcome id or prediction,
// e.g. "over_2.5" or "Home -1.5".
func parseLine(s string) (float64, bool) {
	match := lineRe.FindString(s)
	if match == "" {
		return 0, false
	}
	line, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return line, true
}

// SettleOne resolves a bet against the final score. Pure: no I/O, no clock.
// Returns the new status and the gross payout (zero unless won). Unknown or
// ambiguous markets void.
func SettleOne(bet *domain.Bet, res EventResult) (domain.BetStatus, float64) {
	market := strings.ToLower(bet.MarketID)

	home, away := res.HomeScore, res.AwayScore
	if strings.Contains(market, "first_half") {
		if !res.HasHalfTime {
			return domain.BetVoid, 0
		}
		home, away = res.HomeScoreHT, res.AwayScoreHT
		market = strings.TrimPrefix(market, "first_half_")
		market = strings.TrimPrefix(market, "first_half")
	}

	var won bool
	switch {
	case admission.IsMatchWinnerMarket(market) || market == "winner" || market == "":
		ok, w := settleMatchWinner(bet, res, home, away)
		if !ok {
			return domain.BetVoid, 0
		}
		won = w
	case strings.Contains(market, "over_under") || strings.Contains(market, "total"):
		status := settleOverUnder(bet, home+away)
		if status != domain.BetWon {
			return status, 0
		}
		won = true
	case strings.Contains(market, "both_teams_score") || strings.Contains(market, "btts"):
		ok, w := settleBothTeamsScore(bet, home, away)
		if !ok {
			return domain.BetVoid, 0
		}
		won = w
	case strings.Contains(market, "double_chance"):
		ok, w := settleDoubleChance(bet, home, away)
		if !ok {
			return domain.BetVoid, 0
		}
		won = w
	case strings.Contains(market, "handicap"):
		status := settleHandicap(bet, res, home, away)
		if status != domain.BetWon {
			return status, 0
		}
		won = true
	default:
		return domain.BetVoid, 0
	}

	if won {
		return domain.BetWon, domain.ComputePayout(bet.Stake, bet.Odds)
	}
	return domain.BetLost, 0
}

var drawOutcomes = map[string]bool{"draw": true, "x": true, "d": true, "tie": true}

func settleMatchWinner(bet *domain.Bet, res EventResult, home, away int) (ok, won bool) {
	winner := "draw"
	if home > away {
		winner = "home"
	} else if away > home {
		winner = "away"
	}

	outcome := strings.ToLower(strings.TrimSpace(bet.OutcomeID))
	if drawOutcomes[outcome] || strings.Contains(strings.ToLower(bet.Prediction), "draw") && outcome == "" {
		return true, winner == "draw"
	}
	side := admission.TeamSide(bet.OutcomeID, bet.Prediction, res.HomeTeam, res.AwayTeam)
	if side == "" {
		return false, false
	}
	return true, side == winner
}

func settleOverUnder(bet *domain.Bet, total int) domain.BetStatus {
	line, ok := parseLine(bet.OutcomeID)
	if !ok {
		line, ok = parseLine(bet.Prediction)
	}
	if !ok {
		return domain.BetVoid
	}

	selection := strings.ToLower(bet.OutcomeID + " " + bet.Prediction)
	over := strings.Contains(selection, "over")
	under := strings.Contains(selection, "under")
	if over == under {
		return domain.BetVoid
	}

	t := float64(total)
	if t == line {
		// push on a whole-number line
		return domain.BetVoid
	}
	if over && t > line || under && t < line {
		return domain.BetWon
	}
	return domain.BetLost
}

func settleBothTeamsScore(bet *domain.Bet, home, away int) (ok, won bool) {
	selection := strings.ToLower(bet.OutcomeID)
	both := home > 0 && away > 0
	switch {
	case selection == "yes" || selection == "y":
		return true, both
	case selection == "no" || selection == "n":
		return true, !both
	}
	return false, false
}

func settleDoubleChance(bet *domain.Bet, home, away int) (ok, won bool) {
	winner := "draw"
	if home > away {
		winner = "home"
	} else if away > home {
		winner = "away"
	}

	selection := strings.ToLower(strings.ReplaceAll(bet.OutcomeID, "_", ""))
	switch selection {
	case "1x", "homedraw", "homeordraw":
		return true, winner != "away"
	case "x2", "drawaway", "awayordraw":
		return true, winner != "home"
	case "12", "homeaway", "homeoraway":
		return true, winner != "draw"
	}
	return false, false
}

func settleHandicap(bet *domain.Bet, res EventResult, home, away int) domain.BetStatus {
	line, ok := parseLine(bet.OutcomeID)
	if !ok {
		line, ok = parseLine(bet.Prediction)
	}
	if !ok {
		return domain.BetVoid
	}
	selection := strings.ToLower(bet.OutcomeID)
	var side string
	switch {
	case strings.Contains(selection, "home"):
		side = "home"
	case strings.Contains(selection, "away"):
		side = "away"
	default:
		side = admission.TeamSide(bet.OutcomeID, bet.Prediction, res.HomeTeam, res.AwayTeam)
	}
	if side == "" {
		return domain.BetVoid
	}

	var adjusted float64
	if side == "home" {
		adjusted = float64(home) + line - float64(away)
	} else {
		adjusted = float64(away) + line - float64(home)
	}
	switch {
	case adjusted > 0:
		return domain.BetWon
	case adjusted < 0:
		return domain.BetLost
	default:
		return domain.BetVoid
	}
}
