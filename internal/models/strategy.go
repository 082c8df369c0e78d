package models

// Label - read-only классификация RSI для отображения, в торговле не участвует.
type Label string

const (
	LabelOverbought Label = "OVERBOUGHT"
	LabelOversold   Label = "OVERSOLD"
	LabelNeutral    Label = "NEUTRAL"
)

type Signal struct {
	Instrument string   `json:"instrument"`
	RSI        float64  `json:"rsi"`
	Label      Label    `json:"signal"`
	Position   Position `json:"position"`
}
