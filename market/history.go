package market

import "fmt"

// History is a fixed-capacity window of the most recent bars for one symbol,
// stored as parallel slices oldest first.
type History struct {
	Open  []float64
	High  []float64
	Low   []float64
	Close []float64
	Time  []int64

	size int
}

func NewHistory(size int) *History {
	return &History{
		Open:  make([]float64, 0, size),
		High:  make([]float64, 0, size),
		Low:   make([]float64, 0, size),
		Close: make([]float64, 0, size),
		Time:  make([]int64, 0, size),
		size:  size,
	}
}

func (h *History) Size() int { return h.size }

func (h *History) Len() int { return len(h.Close) }

// Load replaces the window with the last Size() bars. It fails without
// touching the window when there are too few bars or a date does not parse.
func (h *History) Load(bars []Bar) error {
	if len(bars) < h.size {
		return fmt.Errorf("have %d bars, need %d", len(bars), h.size)
	}
	recent := bars[len(bars)-h.size:]

	times := make([]int64, len(recent))
	for i, b := range recent {
		ts, err := b.Time()
		if err != nil {
			return err
		}
		times[i] = ts
	}

	h.Open, h.High, h.Low, h.Close = h.Open[:0], h.High[:0], h.Low[:0], h.Close[:0]
	for _, b := range recent {
		h.Open = append(h.Open, b.Open)
		h.High = append(h.High, b.High)
		h.Low = append(h.Low, b.Low)
		h.Close = append(h.Close, b.Close)
	}
	h.Time = append(h.Time[:0], times...)
	return nil
}

// Last returns the timestamp of the newest bar, or 0 when empty.
func (h *History) Last() int64 {
	if len(h.Time) == 0 {
		return 0
	}
	return h.Time[len(h.Time)-1]
}

// LastClose returns the newest close, or 0 when empty.
func (h *History) LastClose() float64 {
	if len(h.Close) == 0 {
		return 0
	}
	return h.Close[len(h.Close)-1]
}
