package pipeline

import "math"

// Item is anything that can be placed on the pipeline board.
type Item interface {
	PipelineStage() Stage
	Amount() float64
	WinProbability() int
}

// WeightedValue sums value × probability / 100 over open deals.
func WeightedValue[T Item](deals []T) float64 {
	var total float64
	for _, d := range deals {
		if IsClosed(d.PipelineStage()) {
			continue
		}
		total += d.Amount() * float64(d.WinProbability()) / 100
	}
	return RoundCents(total)
}

// OpenValue sums the value of open deals.
func OpenValue[T Item](deals []T) float64 {
	var total float64
	for _, d := range deals {
		if !IsClosed(d.PipelineStage()) {
			total += d.Amount()
		}
	}
	return RoundCents(total)
}

// WonValue sums the value of closed_won deals.
func WonValue[T Item](deals []T) float64 {
	var total float64
	for _, d := range deals {
		if d.PipelineStage() == StageClosedWon {
			total += d.Amount()
		}
	}
	return RoundCents(total)
}

// WinRate is won / (won + lost) × 100, or 0 when nothing has closed.
func WinRate[T Item](deals []T) float64 {
	var won, lost int
	for _, d := range deals {
		switch d.PipelineStage() {
		case StageClosedWon:
			won++
		case StageClosedLost:
			lost++
		}
	}
	if won+lost == 0 {
		return 0
	}
	return RoundCents(float64(won) / float64(won+lost) * 100)
}

// AverageDealSize is the mean value of won deals, or 0 when none.
func AverageDealSize[T Item](deals []T) float64 {
	var total float64
	var n int
	for _, d := range deals {
		if d.PipelineStage() == StageClosedWon {
			total += d.Amount()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return RoundCents(total / float64(n))
}

// CountByStage returns a count for every stage, zero included.
func CountByStage[T Item](deals []T) map[Stage]int {
	counts := make(map[Stage]int, len(Stages))
	for _, s := range Stages {
		counts[s] = 0
	}
	for _, d := range deals {
		if _, ok := counts[d.PipelineStage()]; ok {
			counts[d.PipelineStage()]++
		}
	}
	return counts
}

// Column is one stage of the board.
type Column[T Item] struct {
	Stage         Stage   `json:"stage"`
	Label         string  `json:"label"`
	Probability   int     `json:"probability"`
	Deals         []T     `json:"deals"`
	Count         int     `json:"count"`
	TotalValue    float64 `json:"total_value"`
	WeightedValue float64 `json:"weighted_value"`
}

// Board groups deals into one column per stage in display order. Empty
// stages are still present. Deals with an unknown stage are dropped.
func Board[T Item](deals []T) []Column[T] {
	cols := make([]Column[T], len(Stages))
	index := make(map[Stage]int, len(Stages))
	for i, s := range Stages {
		cols[i] = Column[T]{
			Stage:       s,
			Label:       s.Label(),
			Probability: defaultProbability[s],
			Deals:       make([]T, 0),
		}
		index[s] = i
	}

	for _, d := range deals {
		i, ok := index[d.PipelineStage()]
		if !ok {
			continue
		}
		col := &cols[i]
		col.Deals = append(col.Deals, d)
		col.Count++
		col.TotalValue += d.Amount()
		col.WeightedValue += d.Amount() * float64(d.WinProbability()) / 100
	}

	for i := range cols {
		cols[i].TotalValue = RoundCents(cols[i].TotalValue)
		cols[i].WeightedValue = RoundCents(cols[i].WeightedValue)
	}
	return cols
}

// RoundCents rounds a money amount half away from zero to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
