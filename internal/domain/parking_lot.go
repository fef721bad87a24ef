package domain

// SpotTypeRule marks a run of positions in one row as a non-standard type.
type SpotTypeRule struct {
	Row          int      `json:"row" mapstructure:"row"`
	FromPosition int      `json:"from_position" mapstructure:"from_position"`
	ToPosition   int      `json:"to_position" mapstructure:"to_position"`
	Type         SpotType `json:"type" mapstructure:"type"`
}

// LotLayout is the static description of the lot. Spots are numbered row by
// row, left to right, starting at 1.
type LotLayout struct {
	Name        string         `json:"name" mapstructure:"name"`
	Rows        int            `json:"rows" mapstructure:"rows"`
	SpotsPerRow int            `json:"spots_per_row" mapstructure:"spots_per_row"`
	TypeRules   []SpotTypeRule `json:"type_rules" mapstructure:"type_rules"`
}

func DefaultLotLayout() LotLayout {
	return LotLayout{
		Name:        "Downtown Smart Parking Lot",
		Rows:        4,
		SpotsPerRow: 8,
		TypeRules: []SpotTypeRule{
			{Row: 1, FromPosition: 1, ToPosition: 2, Type: SpotHandicap},
			{Row: 4, FromPosition: 7, ToPosition: 8, Type: SpotPremium},
		},
	}
}

func (l LotLayout) Capacity() int {
	if l.Rows <= 0 || l.SpotsPerRow <= 0 {
		return 0
	}
	return l.Rows * l.SpotsPerRow
}

// TypeAt returns the type of the spot at row/position. The last matching rule wins.
func (l LotLayout) TypeAt(row, position int) SpotType {
	spotType := SpotStandard
	for _, rule := range l.TypeRules {
		if rule.Row == row && position >= rule.FromPosition && position <= rule.ToPosition {
			spotType = rule.Type
		}
	}
	return spotType
}

// SideOf alternates facing direction per row: odd rows face north.
func SideOf(row int) SpotSide {
	if row%2 == 1 {
		return SideNorth
	}
	return SideSouth
}
