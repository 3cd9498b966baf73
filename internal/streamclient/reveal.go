package streamclient

import "time"

// Panel delays after the reveal sequence and after imagery completion.
const (
	ImageryPanelDelay        = time.Second
	InterpretationPanelDelay = time.Second
)

// RevealAction is one kind of timed client action.
type RevealAction string

const (
	ActionRevealCard       RevealAction = "reveal_card"
	ActionShowImageryPanel RevealAction = "show_imagery_panel"
)

// RevealStep is one scheduled action, offset from the cards_selected event.
type RevealStep struct {
	At        time.Duration
	Action    RevealAction
	CardIndex int // valid for ActionRevealCard, -1 otherwise
}

// revealDuration is the total reveal window for a spread of n cards: five
// seconds for the three-card spread, ten for larger spreads.
func revealDuration(n int) time.Duration {
	if n <= 3 {
		return 5 * time.Second
	}
	return 10 * time.Second
}

// BuildRevealPlan computes the timer-driven card reveal schedule for a
// spread of n cards. Cards flip one at a time at even intervals across the
// total window; one second after the last card, the imagery panel opens.
// The pace is fixed by the plan alone, deliberately independent of how fast
// retrieval progress events arrive.
func BuildRevealPlan(n int) []RevealStep {
	if n <= 0 {
		return nil
	}

	total := revealDuration(n)
	interval := total / time.Duration(n)

	plan := make([]RevealStep, 0, n+1)
	for i := 0; i < n; i++ {
		plan = append(plan, RevealStep{
			At:        time.Duration(i+1) * interval,
			Action:    ActionRevealCard,
			CardIndex: i,
		})
	}
	plan = append(plan, RevealStep{
		At:        time.Duration(n)*interval + ImageryPanelDelay,
		Action:    ActionShowImageryPanel,
		CardIndex: -1,
	})
	return plan
}
