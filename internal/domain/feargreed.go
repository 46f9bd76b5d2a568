package domain

import "time"

type FearGreedStatus string

const (
	StatusExtremeFear  FearGreedStatus = "extreme-fear"
	StatusFear         FearGreedStatus = "fear"
	StatusNeutral      FearGreedStatus = "neutral"
	StatusGreed        FearGreedStatus = "greed"
	StatusExtremeGreed FearGreedStatus = "extreme-greed"
)

// StatusForValue classifies a 0-100 index value. Boundaries are inclusive
// on the lower side: 20 is still extreme-fear, 60 is still neutral.
func StatusForValue(value int) FearGreedStatus {
	switch {
	case value <= 20:
		return StatusExtremeFear
	case value <= 40:
		return StatusFear
	case value <= 60:
		return StatusNeutral
	case value <= 80:
		return StatusGreed
	default:
		return StatusExtremeGreed
	}
}

// NeutralComponentScore is the fallback score a component degrades to when
// its raw signal is unavailable.
const NeutralComponentScore = 50.0

// FearGreedComponent is one scored sub-indicator. Defaulted marks a score
// that fell back to the neutral default rather than being computed, so a
// genuine 50 is distinguishable from a missing signal.
type FearGreedComponent struct {
	Score     float64 `json:"score"`
	Defaulted bool    `json:"defaulted"`
}

func DefaultedComponent() FearGreedComponent {
	return FearGreedComponent{Score: NeutralComponentScore, Defaulted: true}
}

type FearGreedComponents struct {
	Volatility FearGreedComponent `json:"volatility"`
	Volume     FearGreedComponent `json:"volume"`
	Momentum   FearGreedComponent `json:"momentum"`
	Breadth    FearGreedComponent `json:"breadth"`
	SafeHaven  FearGreedComponent `json:"safe_haven"`
	JunkBond   FearGreedComponent `json:"junk_bond"`
	PutCall    FearGreedComponent `json:"put_call"`
}

func (c FearGreedComponents) All() []FearGreedComponent {
	return []FearGreedComponent{
		c.Volatility, c.Volume, c.Momentum, c.Breadth,
		c.SafeHaven, c.JunkBond, c.PutCall,
	}
}

// FearGreedIndex is the composite sentiment score. Value is always the
// weighted component sum rounded and clamped to [0,100]; Status is a pure
// function of Value.
type FearGreedIndex struct {
	Value      int                 `json:"value"`
	Status     FearGreedStatus     `json:"status"`
	Confidence int                 `json:"confidence"`
	Components FearGreedComponents `json:"components"`
	ComputedAt time.Time           `json:"computed_at"`
	Source     string              `json:"source"`
}
