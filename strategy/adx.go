package strategy

import "math"

// ADX is Wilder's Average Directional Index over high, low and close. The
// first n periods seed the smoothed true range and directional movement;
// the next n directional indexes seed the ADX itself, so it is ready after
// 2n periods (2n+1 bars).
type ADX struct {
	n int

	prevH, prevL, prevC float64
	hasPrev             bool
	periods             int

	smTR, smPlus, smMinus float64
	plusDI, minusDI       float64

	dxSum   float64
	dxCount int
	adx     float64
	ready   bool
}

func NewADX(period int) *ADX {
	if period <= 0 {
		panic("ADX period must be > 0")
	}
	return &ADX{n: period}
}

func (a *ADX) Warmup() int     { return 2 * a.n }
func (a *ADX) Ready() bool     { return a.ready }
func (a *ADX) Value() float64  { return a.adx }
func (a *ADX) PlusDI() float64 { return a.plusDI }

func (a *ADX) MinusDI() float64 { return a.minusDI }

// Update consumes the next completed bar.
func (a *ADX) Update(h, l, c float64) {
	if !a.hasPrev {
		a.prevH, a.prevL, a.prevC, a.hasPrev = h, l, c, true
		return
	}

	tr := max(h-l, math.Abs(h-a.prevC), math.Abs(l-a.prevC))
	up, down := h-a.prevH, a.prevL-l
	var plusDM, minusDM float64
	if up > down && up > 0 {
		plusDM = up
	}
	if down > up && down > 0 {
		minusDM = down
	}
	a.prevH, a.prevL, a.prevC = h, l, c
	a.periods++

	nf := float64(a.n)
	if a.periods <= a.n {
		a.smTR += tr
		a.smPlus += plusDM
		a.smMinus += minusDM
		if a.periods < a.n {
			return
		}
	} else {
		a.smTR = a.smTR - a.smTR/nf + tr
		a.smPlus = a.smPlus - a.smPlus/nf + plusDM
		a.smMinus = a.smMinus - a.smMinus/nf + minusDM
	}

	a.plusDI, a.minusDI = directional(a.smPlus, a.smMinus, a.smTR)
	dx := directionalIndex(a.plusDI, a.minusDI)

	if a.ready {
		a.adx = (a.adx*(nf-1) + dx) / nf
		return
	}
	a.dxSum += dx
	a.dxCount++
	if a.dxCount > a.n {
		a.adx = a.dxSum / float64(a.dxCount)
		a.ready = true
	}
}

func directional(plus, minus, tr float64) (float64, float64) {
	if tr <= 0 {
		return 0, 0
	}
	return 100 * plus / tr, 100 * minus / tr
}

func directionalIndex(plusDI, minusDI float64) float64 {
	sum := plusDI + minusDI
	if sum <= 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / sum
}
