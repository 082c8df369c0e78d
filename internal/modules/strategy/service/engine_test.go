package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rsi_bot/internal/models"
	"rsi_bot/internal/strategy"
)

const epic = "GOLD"

type call struct {
	op        string
	direction models.Position
}

type fakeGateway struct {
	mu    sync.Mutex
	bars  []models.PriceBar
	err   error
	calls []call

	openErr  error
	closeErr error

	onHistory func(ctx context.Context)
	onClose    func()
	openCtxErr error
}

func (g *fakeGateway) GetHistoricalPrices(ctx context.Context, instrument, resolution string, maxBars int) ([]models.PriceBar, error) {
	if g.onHistory != nil {
		g.onHistory(ctx)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return g.bars, nil
}

func (g *fakeGateway) OpenPosition(ctx context.Context, instrument string, direction models.Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call{op: "open", direction: direction})
	g.openCtxErr = ctx.Err()
	if g.openCtxErr != nil {
		return g.openCtxErr
	}
	return g.openErr
}

func (g *fakeGateway) ClosePosition(ctx context.Context, instrument string) error {
	if g.onClose != nil {
		g.onClose()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call{op: "close"})
	return g.closeErr
}

func (g *fakeGateway) Calls() []call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]call(nil), g.calls...)
}

type fakeSelection struct {
	mu         sync.Mutex
	instrument string
	err        error
}

func (s *fakeSelection) Get(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instrument, s.err
}

func (s *fakeSelection) Set(_ context.Context, instrument string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instrument = instrument
	return nil
}

type recordingReporter struct {
	mu      sync.Mutex
	results []models.TickResult
}

func (r *recordingReporter) Report(_ context.Context, res models.TickResult) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

func bars(closes ...float64) []models.PriceBar {
	out := make([]models.PriceBar, len(closes))
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	for i, c := range closes {
		out[i] = models.PriceBar{Timestamp: ts + int64(i)*300_000, Open: c, High: c, Low: c, Close: c}
	}
	return out
}

// rsiCloses: один рост на gain, одно падение на loss, остальное плоско -> RSI = 100*gain/(gain+loss).
func rsiCloses(gain, loss float64) []float64 {
	closes := []float64{100, 100 + gain, 100 + gain - loss}
	for len(closes) < 15 {
		closes = append(closes, closes[len(closes)-1])
	}
	return closes
}

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 10 + 0.5*float64(i)
	}
	return out
}

func falling(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 - 0.5*float64(i)
	}
	return out
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, gw *fakeGateway) (*Engine, *Store, *fakeSelection, *recordingReporter) {
	t.Helper()
	store := NewStore()
	sel := &fakeSelection{instrument: epic}
	rep := &recordingReporter{}
	e := NewEngine(DefaultConfig(), gw, store, sel, rep, zaptest.NewLogger(t))
	e.now = func() time.Time { return fixedNow }
	return e, store, sel, rep
}

func TestTick_FirstCalculationStoresBaseline(t *testing.T) {
	gw := &fakeGateway{bars: bars(rising(15)...)}
	e, store, _, _ := newTestEngine(t, gw)

	res := e.Tick(t.Context())

	assert.Equal(t, models.TickBaseline, res.Status)
	assert.NoError(t, res.Err)
	assert.Empty(t, gw.Calls())
	mem := store.Get(epic)
	assert.True(t, mem.HasRSI)
	assert.Equal(t, 100.0, mem.LastRSI)
	assert.Equal(t, models.PositionNone, mem.Position)
}

func TestTick_RisingFromNoneOpensLong(t *testing.T) {
	closes := rsiCloses(6.2, 3.8)
	want, ok := strategy.RSI(closes, 14)
	require.True(t, ok)
	require.InDelta(t, 62.0, want, 1e-9)

	gw := &fakeGateway{bars: bars(closes...)}
	e, store, _, _ := newTestEngine(t, gw)
	store.Set(epic, models.Memory{LastRSI: 55, HasRSI: true, Position: models.PositionNone})

	res := e.Tick(t.Context())

	require.Equal(t, models.TickOK, res.Status)
	assert.Equal(t, []call{{op: "open", direction: models.PositionLong}}, gw.Calls())
	assert.Equal(t, models.PositionLong, store.Get(epic).Position)
	assert.Equal(t, want, store.Get(epic).LastRSI)
	assert.Equal(t, models.PositionNone, res.From)
	assert.Equal(t, models.PositionLong, res.To)
}

func TestTick_EqualRSIDoesNothing(t *testing.T) {
	closes := rsiCloses(6.2, 3.8)
	r, _ := strategy.RSI(closes, 14)

	gw := &fakeGateway{bars: bars(closes...)}
	e, store, _, _ := newTestEngine(t, gw)
	before := models.Memory{LastRSI: r, HasRSI: true, Position: models.PositionLong, UpdatedAt: fixedNow}
	store.Set(epic, before)

	res := e.Tick(t.Context())

	assert.Equal(t, models.TickUnchanged, res.Status)
	assert.Empty(t, gw.Calls())
	assert.Equal(t, before, store.Get(epic))
}

func TestTick_ShortToLongClosesThenOpens(t *testing.T) {
	gw := &fakeGateway{bars: bars(rising(20)...)}
	e, store, _, _ := newTestEngine(t, gw)
	store.Set(epic, models.Memory{LastRSI: 40, HasRSI: true, Position: models.PositionShort})

	res := e.Tick(t.Context())

	require.Equal(t, models.TickOK, res.Status)
	assert.Equal(t, []call{
		{op: "close"},
		{op: "open", direction: models.PositionLong},
	}, gw.Calls())
	assert.Equal(t, models.PositionLong, store.Get(epic).Position)
	require.Len(t, res.Actions, 2)
	assert.Equal(t, models.ActionClose, res.Actions[0].Kind)
	assert.Equal(t, models.PositionShort, res.Actions[0].Direction)
}

func TestTick_LongToShortClosesThenOpens(t *testing.T) {
	gw := &fakeGateway{bars: bars(falling(20)...)}
	e, store, _, _ := newTestEngine(t, gw)
	store.Set(epic, models.Memory{LastRSI: 60, HasRSI: true, Position: models.PositionLong})

	res := e.Tick(t.Context())

	require.Equal(t, models.TickOK, res.Status)
	assert.Equal(t, []call{
		{op: "close"},
		{op: "open", direction: models.PositionShort},
	}, gw.Calls())
	assert.Equal(t, models.PositionShort, store.Get(epic).Position)
	assert.Equal(t, 0.0, store.Get(epic).LastRSI)
}

func TestTick_SameDirectionAgainIsNoop(t *testing.T) {
	gw := &fakeGateway{bars: bars(rsiCloses(6.2, 3.8)...)}
	e, store, _, _ := newTestEngine(t, gw)
	store.Set(epic, models.Memory{LastRSI: 50, HasRSI: true, Position: models.PositionLong})

	res := e.Tick(t.Context())

	assert.Equal(t, models.TickUnchanged, res.Status)
	assert.Empty(t, gw.Calls())
	assert.Equal(t, models.PositionLong, store.Get(epic).Position)
	assert.InDelta(t, 62.0, store.Get(epic).LastRSI, 1e-9)
}

func TestTick_ConsecutiveEqualTicksAreIdempotent(t *testing.T) {
	gw := &fakeGateway{bars: bars(rsiCloses(6.2, 3.8)...)}
	e, store, _, _ := newTestEngine(t, gw)
	store.Set(epic, models.Memory{LastRSI: 50, HasRSI: true, Position: models.PositionNone})

	first := e.Tick(t.Context())
	require.Equal(t, models.TickOK, first.Status)
	require.Len(t, gw.Calls(), 1)
	after := store.Get(epic)

	second := e.Tick(t.Context())
	assert.Equal(t, models.TickUnchanged, second.Status)
	assert.Len(t, gw.Calls(), 1, "second tick must not place orders")
	assert.Equal(t, after, store.Get(epic))
}

func TestTick_OpenFailureKeepsState(t *testing.T) {
	gw := &fakeGateway{bars: bars(rising(20)...), openErr: errors.New("deal rejected")}
	e, store, _, _ := newTestEngine(t, gw)
	before := models.Memory{LastRSI: 55, HasRSI: true, Position: models.PositionNone, UpdatedAt: fixedNow}
	store.Set(epic, before)

	res := e.Tick(t.Context())

	assert.Equal(t, models.TickGatewayFailure, res.Status)
	assert.ErrorIs(t, res.Err, ErrGatewayFailure)
	assert.Equal(t, before, store.Get(epic))
	assert.Equal(t, models.PositionNone, res.To)
}

func TestTick_CloseFailureDoesNotOpen(t *testing.T) {
	gw := &fakeGateway{bars: bars(rising(20)...), closeErr: errors.New("timeout")}
	e, store, _, _ := newTestEngine(t, gw)
	before := models.Memory{LastRSI: 40, HasRSI: true, Position: models.PositionShort, UpdatedAt: fixedNow}
	store.Set(epic, before)

	res := e.Tick(t.Context())

	assert.Equal(t, models.TickGatewayFailure, res.Status)
	assert.Equal(t, []call{{op: "close"}}, gw.Calls())
	assert.Equal(t, before, store.Get(epic))
}

// Закрытие подтверждено, открытие нет: у брокера позиции уже нет,
// поэтому память сбрасывается в NONE, а не остаётся SHORT как до тика.
func TestTick_OpenFailureAfterAcknowledgedCloseRecordsNone(t *testing.T) {
	gw := &fakeGateway{bars: bars(rising(20)...), openErr: errors.New("market closed")}
	e, store, _, _ := newTestEngine(t, gw)
	store.Set(epic, models.Memory{LastRSI: 40, HasRSI: true, Position: models.PositionShort})

	res := e.Tick(t.Context())

	assert.Equal(t, models.TickGatewayFailure, res.Status)
	assert.Equal(t, []call{
		{op: "close"},
		{op: "open", direction: models.PositionLong},
	}, gw.Calls())
	assert.Equal(t, models.PositionShort, res.From)
	mem := store.Get(epic)
	assert.NotEqual(t, models.PositionShort, mem.Position)
	assert.Equal(t, models.PositionNone, mem.Position)
	assert.Equal(t, 40.0, mem.LastRSI)
	assert.Equal(t, models.PositionNone, res.To)
}

func TestTick_InsufficientHistory(t *testing.T) {
	gw := &fakeGateway{bars: bars(rising(14)...)}
	e, store, _, rep := newTestEngine(t, gw)

	res := e.Tick(t.Context())

	assert.Equal(t, models.TickDataUnavailable, res.Status)
	assert.ErrorIs(t, res.Err, ErrDataUnavailable)
	assert.Empty(t, store.Snapshot())
	assert.Empty(t, gw.Calls())
	require.Len(t, rep.results, 1)
	assert.Equal(t, models.TickDataUnavailable, rep.results[0].Status)
}

func TestTick_HistoryError(t *testing.T) {
	gw := &fakeGateway{err: errors.New("http 503")}
	e, store, _, _ := newTestEngine(t, gw)
	before := models.Memory{LastRSI: 40, HasRSI: true, Position: models.PositionShort}
	store.Set(epic, before)

	res := e.Tick(t.Context())

	assert.Equal(t, models.TickDataUnavailable, res.Status)
	assert.ErrorIs(t, res.Err, ErrDataUnavailable)
	assert.Equal(t, before, store.Get(epic))
}

func TestTick_NoInstrumentSelected(t *testing.T) {
	gw := &fakeGateway{bars: bars(rising(20)...)}
	e, store, sel, _ := newTestEngine(t, gw)
	sel.instrument = "  "

	res := e.Tick(t.Context())

	assert.Equal(t, models.TickConfigurationError, res.Status)
	assert.ErrorIs(t, res.Err, ErrNoInstrument)
	assert.Empty(t, gw.Calls())
	assert.Empty(t, store.Snapshot())
}

func TestTick_SelectionBackendFailure(t *testing.T) {
	gw := &fakeGateway{bars: bars(rising(20)...)}
	e, store, sel, _ := newTestEngine(t, gw)
	sel.err = errors.New("connection refused")

	res := e.Tick(t.Context())

	assert.Equal(t, models.TickSelectionFailure, res.Status)
	assert.ErrorIs(t, res.Err, ErrSelectionUnavailable)
	assert.NotErrorIs(t, res.Err, ErrNoInstrument)
	assert.True(t, res.Status.Failed())
	assert.Empty(t, gw.Calls())
	assert.Empty(t, store.Snapshot())
}

func TestTick_CanceledBeforeOrders(t *testing.T) {
	gw := &fakeGateway{bars: bars(rising(20)...)}
	e, store, _, _ := newTestEngine(t, gw)
	before := models.Memory{LastRSI: 40, HasRSI: true, Position: models.PositionShort}
	store.Set(epic, before)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	res := e.Tick(ctx)

	assert.Equal(t, models.TickCanceled, res.Status)
	assert.Empty(t, gw.Calls())
	assert.Equal(t, before, store.Get(epic))
}

func TestTick_CancelDuringOrdersCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	gw := &fakeGateway{bars: bars(rising(20)...), onClose: cancel}
	e, store, _, _ := newTestEngine(t, gw)
	store.Set(epic, models.Memory{LastRSI: 40, HasRSI: true, Position: models.PositionShort})

	res := e.Tick(ctx)

	require.Equal(t, models.TickOK, res.Status)
	assert.Len(t, gw.Calls(), 2)
	// контекст ордера живой в момент вызова, хотя тик уже отменён
	assert.NoError(t, gw.openCtxErr)
	assert.Error(t, ctx.Err())
	assert.Equal(t, models.PositionLong, store.Get(epic).Position)
}

func TestTick_OverlappingTickIsSkipped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	gw := &fakeGateway{bars: bars(rising(20)...)}
	gw.onHistory = func(context.Context) {
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	e, _, _, _ := newTestEngine(t, gw)

	done := make(chan models.TickResult, 1)
	go func() { done <- e.Tick(t.Context()) }()
	<-entered

	second := e.Tick(t.Context())
	assert.Equal(t, models.TickSkipped, second.Status)
	assert.ErrorIs(t, second.Err, ErrTickInProgress)

	close(release)
	first := <-done
	assert.Equal(t, models.TickBaseline, first.Status)
}

func TestSelectInstrument_TakesEffectNextTick(t *testing.T) {
	gw := &fakeGateway{bars: bars(rising(20)...)}
	e, store, _, _ := newTestEngine(t, gw)

	require.NoError(t, e.SelectInstrument(t.Context(), " US500 "))
	got, err := e.SelectedInstrument(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "US500", got)

	res := e.Tick(t.Context())
	assert.Equal(t, "US500", res.Instrument)
	assert.True(t, store.Get("US500").HasRSI)
	assert.False(t, store.Get(epic).HasRSI)

	assert.ErrorIs(t, e.SelectInstrument(t.Context(), ""), ErrEmptyInstrument)
}

func TestCurrentSignal(t *testing.T) {
	gw := &fakeGateway{bars: bars(rising(20)...)}
	e, store, _, _ := newTestEngine(t, gw)
	store.Set(epic, models.Memory{LastRSI: 80, HasRSI: true, Position: models.PositionShort})

	sig, err := e.CurrentSignal(t.Context(), epic)
	require.NoError(t, err)
	assert.Equal(t, 100.0, sig.RSI)
	assert.Equal(t, models.LabelOverbought, sig.Label)
	assert.Equal(t, models.PositionShort, sig.Position)
	assert.Empty(t, gw.Calls())
	assert.Equal(t, 80.0, store.Get(epic).LastRSI, "read path must not touch strategy memory")

	gw.bars = bars(falling(20)...)
	sig, err = e.CurrentSignal(t.Context(), epic)
	require.NoError(t, err)
	assert.Equal(t, models.LabelOversold, sig.Label)

	gw.bars = bars(rsiCloses(5, 5)...)
	sig, err = e.CurrentSignal(t.Context(), epic)
	require.NoError(t, err)
	assert.Equal(t, models.LabelNeutral, sig.Label)

	gw.bars = bars(1, 2, 3)
	_, err = e.CurrentSignal(t.Context(), epic)
	assert.ErrorIs(t, err, ErrDataUnavailable)

	_, err = e.CurrentSignal(t.Context(), "")
	assert.ErrorIs(t, err, ErrEmptyInstrument)
}

func TestCurrentPosition_DefaultsToNone(t *testing.T) {
	e, _, _, _ := newTestEngine(t, &fakeGateway{})
	assert.Equal(t, models.PositionNone, e.CurrentPosition("UNKNOWN"))
}

func TestChart(t *testing.T) {
	gw := &fakeGateway{bars: bars(rising(20)...)}
	e, _, _, _ := newTestEngine(t, gw)

	ch, err := e.Chart(t.Context(), epic, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "HOUR_4", ch.Resolution)
	assert.Len(t, ch.Prices, 20)
	assert.True(t, ch.HasRSI)
	assert.Equal(t, 100.0, ch.RSI)

	gw.bars = bars(1, 2)
	ch, err = e.Chart(t.Context(), epic, "MINUTE", 2)
	require.NoError(t, err)
	assert.False(t, ch.HasRSI)
}
