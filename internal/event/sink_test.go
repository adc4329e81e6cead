package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/utils"

	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	mu     sync.Mutex
	events []dto.Event
}

func (r *recordingSink) Publish(ctx context.Context, event dto.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type chanSender struct {
	texts chan string
	err   error
}

func (c *chanSender) Send(ctx context.Context, text string) error {
	c.texts <- text
	return c.err
}

func TestMultiSink_FansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	sink := NewMultiSink(a, b, NewLogSink(logger.NewNop()))

	sink.Publish(context.Background(), dto.Event{Type: dto.EventPositionOpened, Symbol: "AAPL"})

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestTelegramSink_DeliversFormattedText(t *testing.T) {
	sender := &chanSender{texts: make(chan string, 1), err: errors.New("ignored")}
	sink := NewTelegramSink(sender, time.Second, logger.NewNop())

	sink.Publish(context.Background(), dto.NewSignalEvent(&model.TradingSignal{
		UserID: 7, Symbol: "AAPL", SignalType: model.SignalTypeBuy, Price: 101.5, Ema5: 101, Ema8: 100, Ema22: 99,
	}))

	select {
	case text := <-sender.texts:
		assert.Contains(t, text, "[SIGNAL_DETECTED] AAPL (user 7)")
		assert.Contains(t, text, "Signal: BUY @ 101.5000")
	case <-time.After(2 * time.Second):
		t.Fatal("telegram sink did not deliver")
	}
}

func TestFormatEvent_ClosedPosition(t *testing.T) {
	reason := model.ExitReasonTakeProfit
	p := &model.Position{
		ID: 3, UserID: 1, Symbol: "MSFT", Status: model.PositionClosedProfit,
		EntryPrice: 100, FillQty: 2,
		ExitPrice: utils.ToPointer(102.0), ExitReason: &reason,
		ProfitLoss: utils.ToPointer(4.0), ProfitLossPercentage: utils.ToPointer(2.0),
	}

	text := FormatEvent(dto.NewPositionEvent(dto.EventPositionClosed, p, ""))
	assert.Contains(t, text, "Position #3: closed_profit")
	assert.Contains(t, text, "Exit: 102.0000 (take_profit)")
	assert.Contains(t, text, "P/L: 4.00 (+2.00%)")
}
