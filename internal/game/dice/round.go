package dice

// Side identifies which participant took a round.
type Side int

// Round results.
const (
	Tie Side = iota
	SideA
	SideB
)

// ResolveRound compares both submitted values. Strictly higher wins; equal
// values award no point.
func ResolveRound(a, b int) Side {
	switch {
	case a > b:
		return SideA
	case b > a:
		return SideB
	default:
		return Tie
	}
}

// Score is the running match score.
type Score struct {
	A, B int
}

// Apply adds the round result to the score.
func (s Score) Apply(side Side) Score {
	switch side {
	case SideA:
		s.A++
	case SideB:
		s.B++
	}
	return s
}

// Winner reports the side that reached requiredWins, if any.
func (s Score) Winner(requiredWins int) (Side, bool) {
	switch {
	case s.A >= requiredWins:
		return SideA, true
	case s.B >= requiredWins:
		return SideB, true
	default:
		return Tie, false
	}
}
