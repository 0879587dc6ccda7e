// Package scoring holds the payoff rules for a match: the per-round
// payoff matrix and the penalty applied when a player forfeits.
package scoring

const (
	// MaxRounds is the number of rounds in a full match.
	MaxRounds = 10
	// FirstBonusRound marks where score deltas start doubling.
	FirstBonusRound = 9
)

// Red (0) is the cooperative choice, Blue (1) the aggressive one.
const (
	Red  = 0
	Blue = 1
)

// Score maps one round's pair of choices to a score delta per player.
// Choices must already be validated as 0 or 1 by the caller. When bonus
// is set (rounds 9 and 10) both deltas are doubled.
func Score(choice1, choice2 int, bonus bool) (delta1, delta2 int) {
	switch {
	case choice1 == Red && choice2 == Red:
		delta1, delta2 = 3, 3
	case choice1 == Red && choice2 == Blue:
		delta1, delta2 = -6, 6
	case choice1 == Blue && choice2 == Red:
		delta1, delta2 = 6, -6
	default:
		delta1, delta2 = -3, -3
	}
	if bonus {
		delta1 *= 2
		delta2 *= 2
	}
	return delta1, delta2
}

// IsBonusRound reports whether deltas double on the given round.
func IsBonusRound(round int) bool {
	return round >= FirstBonusRound
}

// ForfeitScore closes out the remaining rounds when a player surrenders.
// The abandoning player eats the worst case for every unplayed round plus
// a flat penalty; the remaining player collects the best case. A forfeit
// before round 8 is softened by 12 points in the abandoner's favor.
func ForfeitScore(abandoned, remaining, round int) (int, int) {
	remainingRounds := MaxRounds - round
	abandoned = abandoned - 6*remainingRounds - 24
	remaining = remaining + 6*remainingRounds
	if round < 8 {
		abandoned += 12
		remaining -= 12
	}
	return abandoned, remaining
}
