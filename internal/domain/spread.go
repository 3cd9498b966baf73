package domain

// SpreadType identifies the layout template for a reading.
type SpreadType string

const (
	SpreadThreeCard   SpreadType = "three_card"
	SpreadCelticCross SpreadType = "celtic_cross"
)

// Position is one slot in a spread template. Order is zero-based and defines
// both draw order and render order.
type Position struct {
	Name        string `json:"position"`
	Order       int    `json:"position_order"`
	Description string `json:"position_description"`
}

var threeCardPositions = []Position{
	{Name: "past", Order: 0, Description: "Past influences"},
	{Name: "present", Order: 1, Description: "Current situation"},
	{Name: "future", Order: 2, Description: "Future tendency"},
}

var celticCrossPositions = []Position{
	{Name: "cover", Order: 0, Description: "What covers the querent: the present situation"},
	{Name: "crossing", Order: 1, Description: "What crosses the querent: obstacles or aid"},
	{Name: "basis", Order: 2, Description: "What is beneath: the foundation of the matter"},
	{Name: "behind", Order: 3, Description: "What is behind: past influences"},
	{Name: "crowned", Order: 4, Description: "What crowns: the possible outcome or goal"},
	{Name: "before", Order: 5, Description: "What is before: the near future"},
	{Name: "self", Order: 6, Description: "The querent themselves"},
	{Name: "environment", Order: 7, Description: "The querent's environment and the influence of others"},
	{Name: "hopes_and_fears", Order: 8, Description: "The querent's hopes and fears"},
	{Name: "outcome", Order: 9, Description: "The final outcome"},
}

// SpreadPositions returns the position template for a spread type.
func SpreadPositions(t SpreadType) ([]Position, error) {
	switch t {
	case SpreadThreeCard:
		return threeCardPositions, nil
	case SpreadCelticCross:
		return celticCrossPositions, nil
	default:
		return nil, ErrUnknownSpread
	}
}

// SpreadSize returns the number of cards the spread draws.
func SpreadSize(t SpreadType) (int, error) {
	p, err := SpreadPositions(t)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// UsesSignificator reports whether the spread places a significator card
// before the draw. Only the Celtic Cross does.
func UsesSignificator(t SpreadType) bool {
	return t == SpreadCelticCross
}

// ResolveSpread picks the spread for a session. An explicit user choice wins
// unless it is empty or "auto"; next the analyzer's recommendation; failing
// both, the three-card spread.
func ResolveSpread(userSelected string, recommended SpreadType) SpreadType {
	switch userSelected {
	case string(SpreadThreeCard):
		return SpreadThreeCard
	case string(SpreadCelticCross):
		return SpreadCelticCross
	}
	if recommended == SpreadThreeCard || recommended == SpreadCelticCross {
		return recommended
	}
	return SpreadThreeCard
}
