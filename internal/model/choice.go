package model

// Choice is one of the three throws a contestant can make in a round
type Choice string

const (
	ChoiceRock     Choice = "rock"
	ChoicePaper    Choice = "paper"
	ChoiceScissors Choice = "scissors"
)

// Choices lists all valid throws, in the order used for random assignment
var Choices = []Choice{ChoiceRock, ChoicePaper, ChoiceScissors}

// Valid reports whether c is one of the three throws
func (c Choice) Valid() bool {
	return c == ChoiceRock || c == ChoicePaper || c == ChoiceScissors
}

// beats maps each choice to the choice it defeats
var beats = map[Choice]Choice{
	ChoiceRock:     ChoiceScissors,
	ChoiceScissors: ChoicePaper,
	ChoicePaper:    ChoiceRock,
}

// Beats reports whether c defeats other
func (c Choice) Beats(other Choice) bool {
	return beats[c] == other
}

// Result is the per-side outcome label for one round
type Result string

const (
	ResultWin  Result = "win"
	ResultLose Result = "lose"
	ResultTie  Result = "tie"
)

// Judge evaluates two concrete choices and returns the result for each
// side. It must never be called with a missing choice; absent submissions
// are replaced by a random choice before evaluation.
func Judge(a, b Choice) (Result, Result) {
	switch {
	case a == b:
		return ResultTie, ResultTie
	case a.Beats(b):
		return ResultWin, ResultLose
	default:
		return ResultLose, ResultWin
	}
}
