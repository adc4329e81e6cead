package indicator

type Signal string

const (
	SignalNone Signal = "none"
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
)

const (
	DefaultFastPeriod       = 5
	DefaultMidPeriod        = 8
	DefaultSlowPeriod       = 22
	DefaultConfirmationBars = 3
)

// SignalDetector turns an EMA snapshot into a buy/sell/none decision.
//
// A buy needs fast > mid > slow on the latest bar and fast > mid on each of
// the last ConfirmationBars bars, with series aligned from the end. Sell is
// the mirror. ConfirmationBars of zero means the latest alignment alone decides.
type SignalDetector struct {
	FastPeriod       int
	MidPeriod        int
	SlowPeriod       int
	ConfirmationBars int
}

func NewSignalDetector(fast, mid, slow, confirmationBars int) *SignalDetector {
	if confirmationBars < 0 {
		confirmationBars = 0
	}
	return &SignalDetector{
		FastPeriod:       fast,
		MidPeriod:        mid,
		SlowPeriod:       slow,
		ConfirmationBars: confirmationBars,
	}
}

func DefaultSignalDetector() *SignalDetector {
	return NewSignalDetector(DefaultFastPeriod, DefaultMidPeriod, DefaultSlowPeriod, DefaultConfirmationBars)
}

// Periods lists the EMA periods Evaluate needs.
func (d *SignalDetector) Periods() []int {
	return []int{d.FastPeriod, d.MidPeriod, d.SlowPeriod}
}

// Evaluate reports buy when the EMAs stack fast > mid > slow and fast has been
// above mid for the last ConfirmationBars bars, sell for the mirror image. It
// judges the current state, not the bar of the cross: a trend that has been
// aligned for longer than the window still evaluates to buy or sell, and the
// one-open-position rule keeps it from opening a second position.
func (d *SignalDetector) Evaluate(snapshot map[int]EmaResult) Signal {
	fast, okFast := snapshot[d.FastPeriod]
	mid, okMid := snapshot[d.MidPeriod]
	slow, okSlow := snapshot[d.SlowPeriod]
	if !okFast || !okMid || !okSlow {
		return SignalNone
	}

	switch {
	case fast.Value > mid.Value && mid.Value > slow.Value:
		if d.confirmed(fast.Series, mid.Series, func(f, m float64) bool { return f > m }) {
			return SignalBuy
		}
	case fast.Value < mid.Value && mid.Value < slow.Value:
		if d.confirmed(fast.Series, mid.Series, func(f, m float64) bool { return f < m }) {
			return SignalSell
		}
	}
	return SignalNone
}

func (d *SignalDetector) confirmed(fast, mid []float64, holds func(f, m float64) bool) bool {
	n := d.ConfirmationBars
	if n <= 0 {
		return true
	}
	if len(fast) < n || len(mid) < n {
		return false
	}
	for i := 1; i <= n; i++ {
		if !holds(fast[len(fast)-i], mid[len(mid)-i]) {
			return false
		}
	}
	return true
}
