package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wurlus/platform/internal/domain"
)

func result(home, away int) EventResult {
	return EventResult{
		EventID:   "fb-2000",
		HomeTeam:  "Arsenal",
		AwayTeam:  "Chelsea",
		HomeScore: home,
		AwayScore: away,
	}
}

func bet(marketID, outcomeID, prediction string) *domain.Bet {
	return &domain.Bet{
		MarketID:   marketID,
		OutcomeID:  outcomeID,
		Prediction: prediction,
		Odds:       2.0,
		Stake:      100,
	}
}

func TestSettleOne_MatchWinner(t *testing.T) {
	status, gross := SettleOne(bet("match_winner", "home", "Arsenal"), result(2, 1))
	assert.Equal(t, domain.BetWon, status)
	assert.Equal(t, 200.0, gross)

	status, gross = SettleOne(bet("match_winner", "away", "Chelsea"), result(2, 1))
	assert.Equal(t, domain.BetLost, status)
	assert.Zero(t, gross)

	status, _ = SettleOne(bet("match_winner", "draw", ""), result(1, 1))
	assert.Equal(t, domain.BetWon, status)

	status, _ = SettleOne(bet("match_winner", "draw", ""), result(2, 1))
	assert.Equal(t, domain.BetLost, status)
}

func TestSettleOne_MatchWinnerByPrediction(t *testing.T) {
	// outcome id unusable; team name in the prediction decides
	status, _ := SettleOne(bet("1x2", "selection_3", "Chelsea to win"), result(0, 2))
	assert.Equal(t, domain.BetWon, status)
}

func TestSettleOne_OverUnder(t *testing.T) {
	status, _ := SettleOne(bet("over_under", "over_2.5", ""), result(2, 1))
	assert.Equal(t, domain.BetWon, status)

	status, _ = SettleOne(bet("over_under", "under_2.5", ""), result(2, 1))
	assert.Equal(t, domain.BetLost, status)

	// whole-number line push voids
	status, _ = SettleOne(bet("over_under", "over_3", ""), result(2, 1))
	assert.Equal(t, domain.BetVoid, status)

	// no parsable line voids
	status, _ = SettleOne(bet("over_under", "over", ""), result(2, 1))
	assert.Equal(t, domain.BetVoid, status)
}

func TestSettleOne_BothTeamsScore(t *testing.T) {
	status, _ := SettleOne(bet("both_teams_score", "yes", ""), result(2, 1))
	assert.Equal(t, domain.BetWon, status)

	status, _ = SettleOne(bet("both_teams_score", "yes", ""), result(2, 0))
	assert.Equal(t, domain.BetLost, status)

	status, _ = SettleOne(bet("both_teams_score", "no", ""), result(2, 0))
	assert.Equal(t, domain.BetWon, status)
}

func TestSettleOne_DoubleChance(t *testing.T) {
	status, _ := SettleOne(bet("double_chance", "1x", ""), result(1, 1))
	assert.Equal(t, domain.BetWon, status)

	status, _ = SettleOne(bet("double_chance", "1x", ""), result(0, 1))
	assert.Equal(t, domain.BetLost, status)

	status, _ = SettleOne(bet("double_chance", "12", ""), result(1, 1))
	assert.Equal(t, domain.BetLost, status)

	status, _ = SettleOne(bet("double_chance", "x2", ""), result(0, 3))
	assert.Equal(t, domain.BetWon, status)
}

func TestSettleOne_Handicap(t *testing.T) {
	// home -1.5 needs a two-goal win
	status, _ := SettleOne(bet("handicap", "home_-1.5", ""), result(2, 0))
	assert.Equal(t, domain.BetWon, status)

	status, _ = SettleOne(bet("handicap", "home_-1.5", ""), result(1, 0))
	assert.Equal(t, domain.BetLost, status)

	// whole-number handicap push voids
	status, _ = SettleOne(bet("handicap", "home_-1", ""), result(1, 0))
	assert.Equal(t, domain.BetVoid, status)

	status, _ = SettleOne(bet("handicap", "away_+1.5", ""), result(1, 0))
	assert.Equal(t, domain.BetWon, status)
}

func TestSettleOne_FirstHalf(t *testing.T) {
	res := result(2, 1)
	res.HasHalfTime = true
	res.HomeScoreHT = 0
	res.AwayScoreHT = 1

	status, _ := SettleOne(bet("first_half_winner", "away", ""), res)
	assert.Equal(t, domain.BetWon, status)

	status, _ = SettleOne(bet("first_half_winner", "home", ""), res)
	assert.Equal(t, domain.BetLost, status)

	// no half-time data voids
	status, _ = SettleOne(bet("first_half_winner", "home", ""), result(2, 1))
	assert.Equal(t, domain.BetVoid, status)
}

func TestSettleOne_UnknownMarketVoids(t *testing.T) {
	status, gross := SettleOne(bet("correct_score", "2-1", ""), result(2, 1))
	assert.Equal(t, domain.BetVoid, status)
	assert.Zero(t, gross)
}

func TestEventResultWinner(t *testing.T) {
	assert.Equal(t, "home", result(2, 1).Winner())
	assert.Equal(t, "away", result(0, 1).Winner())
	assert.Equal(t, "draw", result(1, 1).Winner())
}
