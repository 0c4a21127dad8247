package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bes-checkout/internal/domain/discount"
	"github.com/xenking/bes-checkout/internal/domain/money"
	"github.com/xenking/bes-checkout/internal/domain/order"
	"github.com/xenking/bes-checkout/internal/domain/payment"
	"github.com/xenking/bes-checkout/internal/domain/reconcile"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func strPtr(s string) *string { return &s }

type mockLoader struct {
	mu    sync.Mutex
	snaps []*order.Snapshot
	errs  []error
	calls int
}

// Load returns the next queued result, repeating the last one.
func (m *mockLoader) Load(_ context.Context, _ string) (*order.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i >= len(m.snaps) {
		i = len(m.snaps) - 1
	}
	return m.snaps[i], m.errs[i]
}

func (m *mockLoader) push(snap *order.Snapshot, err error) {
	m.snaps = append(m.snaps, snap)
	m.errs = append(m.errs, err)
}

type mockRedeemer struct {
	msg string
	err error
}

func (m *mockRedeemer) RedeemCoupon(_ context.Context, _ string) (string, error) {
	return m.msg, m.err
}

type mockReconciler struct {
	target reconcile.NavigationTarget
	err    error
	calls  [][2]string
	// widget, when set, records whether the dialog was still open.
	widget     *payment.HostedWidget
	openDuring []bool
}

func (m *mockReconciler) Reconcile(_ context.Context, transactionID, orderID string) (reconcile.NavigationTarget, error) {
	m.calls = append(m.calls, [2]string{transactionID, orderID})
	if m.widget != nil {
		_, open := m.widget.Pending()
		m.openDuring = append(m.openDuring, open)
	}
	return m.target, m.err
}

type fakeScheduler struct {
	mu    sync.Mutex
	fns   []func()
	delay []time.Duration
	stops int
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.fns)
	s.fns = append(s.fns, f)
	s.delay = append(s.delay, d)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stops++
		s.fns[idx] = nil
		return true
	}
}

func (s *fakeScheduler) fire() {
	s.mu.Lock()
	fns := append([]func(){}, s.fns...)
	s.mu.Unlock()
	for _, f := range fns {
		if f != nil {
			f()
		}
	}
}

func fullOrder() *order.Snapshot {
	return order.New(order.Snapshot{
		ID:      "42",
		OrderID: "X123",
		Shopper: order.Shopper{Email: "ada@example.com", Phone: "+234800", FirstName: "Ada", LastName: "Obi"},

		Subtotal:    d("120"),
		ShippingFee: d("20"),
		HandlingFee: d("5"),
		TaxDuties:   d("5"),

		GiveDiscount:    true,
		DiscountClaimed: order.NotClaimed,

		Total: money.Dual{USD: d("150"), NGN: d("230000")},
	})
}

func claimedOrder() *order.Snapshot {
	return order.New(order.Snapshot{
		ID:              "42",
		OrderID:         "X123",
		GiveDiscount:    true,
		DiscountAmount:  decimal.NewNullDecimal(d("10")),
		DiscountCode:    strPtr("SAVE10"),
		DiscountClaimed: order.Claimed,
		Total:           money.Dual{USD: d("140"), NGN: d("215000")},
	})
}

func additionalOrder() *order.Snapshot {
	return order.New(order.Snapshot{
		ID:                "42",
		OrderID:           "X123",
		GiveDiscount:      true,
		Total:             money.Dual{USD: d("150"), NGN: d("230000")},
		AdditionalPayment: money.Dual{USD: d("25"), NGN: d("38000")},
	})
}

type harness struct {
	c          *Controller
	loader     *mockLoader
	redeemer   *mockRedeemer
	reconciler *mockReconciler
	widget     *payment.HostedWidget
	sched      *fakeScheduler
}

func newHarness(t *testing.T, token string, snap *order.Snapshot, loadErr error) *harness {
	t.Helper()
	h := &harness{
		loader:     &mockLoader{},
		redeemer:   &mockRedeemer{msg: "Discount applied"},
		reconciler: &mockReconciler{target: reconcile.NavigationTarget{Status: reconcile.StatusSuccess, Ref: "X123"}},
		widget:     &payment.HostedWidget{},
		sched:      &fakeScheduler{},
	}
	h.loader.push(snap, loadErr)
	h.reconciler.widget = h.widget
	h.c = New(Config{
		OrderID:    "42",
		Session:    Session{Token: token},
		Loader:     h.loader,
		Redeemer:   h.redeemer,
		Builder:    payment.NewBuilder(payment.BuilderOptions{PublicKey: "pk"}),
		Widget:     h.widget,
		Reconciler: h.reconciler,
		Scheduler:  h.sched,
	})
	t.Cleanup(h.c.Close)
	return h
}

func mounted(t *testing.T, snap *order.Snapshot) *harness {
	t.Helper()
	h := newHarness(t, "tok", snap, nil)
	require.NoError(t, h.c.Mount(context.Background()))
	return h
}

func TestController_Unauthenticated(t *testing.T) {
	h := newHarness(t, "", fullOrder(), nil)

	err := h.c.Mount(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, h.loader.calls)

	v := h.c.View()
	assert.Equal(t, StateUnauthenticated, v.State)
	assert.Equal(t, DefaultLoginPath, v.LoginRedirect)
	assert.Nil(t, v.Order)
	assert.Equal(t, Actions{}, v.Actions)

	_, err = h.c.Pay(context.Background(), money.NGN)
	require.ErrorIs(t, err, ErrPaymentDisabled)
}

func TestController_LoadFailure(t *testing.T) {
	loadErr := &order.LoadError{OrderID: "42", Message: "Not found."}
	h := newHarness(t, "tok", nil, loadErr)

	err := h.c.Mount(context.Background())
	require.ErrorAs(t, err, new(*order.LoadError))

	v := h.c.View()
	assert.Equal(t, StateLoading, v.State)
	assert.Equal(t, "Not found.", v.Error)
	assert.Nil(t, v.Order)
	assert.Nil(t, v.Discount)
	assert.Equal(t, Actions{}, v.Actions)

	_, err = h.c.ClaimDiscount(context.Background())
	require.ErrorIs(t, err, ErrNotReady)
}

func TestController_FullSettlementScenario(t *testing.T) {
	h := mounted(t, fullOrder())

	v := h.c.View()
	require.Equal(t, StateReady, v.State)
	require.NotNil(t, v.Order)
	assert.Equal(t, order.KindFullSettlement, v.Order.Settlement)
	assert.Equal(t, "$150.00", v.Order.DueDollar)
	assert.Equal(t, "₦230,000.00", v.Order.DueNaira)
	assert.Contains(t, v.Order.Lines, Line{Label: "Subtotal", Amount: "$120.00"})
	assert.Contains(t, v.Order.Lines, Line{Label: "Total (NGN)", Amount: "₦230,000.00"})
	require.NotNil(t, v.Discount)
	assert.True(t, v.Discount.Claimable)
	assert.Equal(t, DefaultBankTransfer(), v.BankTransfer)

	h.c.SetAcceptance(true)
	usd, err := h.c.Pay(context.Background(), money.USD)
	require.NoError(t, err)
	assert.True(t, d("150").Equal(usd.Amount))

	ngn, err := h.c.Pay(context.Background(), money.NGN)
	require.NoError(t, err)
	assert.True(t, d("230000").Equal(ngn.Amount))
	assert.NotEqual(t, usd.TxRef, ngn.TxRef)

	pending, ok := h.widget.Pending()
	require.True(t, ok)
	assert.Equal(t, ngn.TxRef, pending.TxRef)
}

func TestController_AdditionalPaymentScenario(t *testing.T) {
	h := mounted(t, additionalOrder())

	v := h.c.View()
	require.NotNil(t, v.Order)
	assert.Equal(t, order.KindAdditionalPayment, v.Order.Settlement)
	assert.Equal(t, "$25.00", v.Order.DueDollar)
	assert.Equal(t, "₦38,000.00", v.Order.DueNaira)
	assert.Nil(t, v.Discount)

	h.c.SetDiscountCode("SAVE10")
	assert.False(t, h.c.View().Actions.ClaimDiscount)
	_, err := h.c.ClaimDiscount(context.Background())
	require.ErrorIs(t, err, ErrDiscountUnavailable)

	h.c.SetAcceptance(true)
	usd, err := h.c.Pay(context.Background(), money.USD)
	require.NoError(t, err)
	assert.True(t, d("25").Equal(usd.Amount))
	ngn, err := h.c.Pay(context.Background(), money.NGN)
	require.NoError(t, err)
	assert.True(t, d("38000").Equal(ngn.Amount))
}

func TestController_AcceptanceGatesPayment(t *testing.T) {
	h := mounted(t, fullOrder())

	v := h.c.View()
	assert.False(t, v.Actions.PayNaira)
	assert.False(t, v.Actions.PayDollar)
	assert.True(t, v.Actions.OpenTerms)

	_, err := h.c.Pay(context.Background(), money.NGN)
	require.ErrorIs(t, err, ErrPaymentDisabled)

	h.c.SetAcceptance(true)
	v = h.c.View()
	assert.True(t, v.Actions.PayNaira)
	assert.True(t, v.Actions.PayDollar)
	// Discount state does not affect payment.
	assert.False(t, v.Actions.ClaimDiscount)

	h.c.SetAcceptance(false)
	assert.False(t, h.c.View().Actions.PayNaira)
}

func TestController_ClaimEnabledByCodeLength(t *testing.T) {
	h := mounted(t, fullOrder())

	assert.False(t, h.c.View().Actions.ClaimDiscount)
	h.c.SetDiscountCode("S")
	assert.True(t, h.c.View().Actions.ClaimDiscount)
	h.c.SetDiscountCode("  ")
	assert.False(t, h.c.View().Actions.ClaimDiscount)
}

func TestController_Terms(t *testing.T) {
	h := mounted(t, fullOrder())

	h.c.OpenTerms()
	assert.True(t, h.c.View().TermsOpen)
	h.c.CloseTerms()
	assert.False(t, h.c.View().TermsOpen)
}

func TestController_ClaimSuccessReloads(t *testing.T) {
	h := mounted(t, fullOrder())
	h.loader.push(claimedOrder(), nil)
	h.c.SetAcceptance(true)
	h.c.SetDiscountCode("SAVE10")

	res, err := h.c.ClaimDiscount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Discount applied", res.Message)

	v := h.c.View()
	require.NotNil(t, v.Discount)
	assert.Equal(t, discount.PhaseSuccess, v.Discount.Phase)
	assert.Equal(t, "Discount applied", v.Discount.Message)
	assert.Empty(t, v.Discount.Code)
	require.Len(t, h.sched.delay, 1)
	assert.Equal(t, discount.DefaultReloadDelay, h.sched.delay[0])
	assert.Equal(t, 1, h.loader.calls)

	h.sched.fire()

	assert.Equal(t, 2, h.loader.calls)
	v = h.c.View()
	assert.Equal(t, StateReady, v.State)
	assert.False(t, v.Accepted, "acceptance resets on reload")
	require.NotNil(t, v.Discount)
	assert.True(t, v.Discount.Claimed)
	assert.False(t, v.Discount.Claimable)
	assert.Equal(t, "SAVE10", v.Discount.AppliedCode)
	assert.Equal(t, "$10.00", v.Discount.Amount)
	assert.Equal(t, discount.PhaseIdle, v.Discount.Phase)
	assert.Contains(t, v.Order.Lines, Line{Label: "Discount", Amount: "$10.00"})
}

func TestController_ClaimRejected(t *testing.T) {
	h := mounted(t, fullOrder())
	h.redeemer.err = errors.New("rejected")
	h.c.SetAcceptance(true)
	h.c.SetDiscountCode("OLD")

	_, err := h.c.ClaimDiscount(context.Background())
	require.ErrorAs(t, err, new(*discount.ClaimError))

	v := h.c.View()
	assert.Equal(t, discount.PhaseError, v.Discount.Phase)
	assert.NotEmpty(t, v.Discount.Error)
	assert.Equal(t, "OLD", v.Discount.Code)
	assert.Empty(t, h.sched.fns)
	// A rejected claim does not block payment.
	assert.True(t, v.Actions.PayNaira)
	assert.Empty(t, v.Error)
}

func TestController_CompletionReconciles(t *testing.T) {
	h := mounted(t, fullOrder())
	h.c.SetAcceptance(true)
	h.reconciler.target = reconcile.NavigationTarget{Status: reconcile.StatusFail, Ref: "X123"}

	cfg, err := h.c.Pay(context.Background(), money.NGN)
	require.NoError(t, err)

	require.NoError(t, h.widget.Complete(context.Background(), payment.Completion{
		TransactionID: "9001",
		TxRef:         cfg.TxRef,
		Status:        "successful",
	}))

	assert.Equal(t, [][2]string{{"9001", "42"}}, h.reconciler.calls)
	assert.Equal(t, []bool{false}, h.reconciler.openDuring, "dialog closes before verification")

	v := h.c.View()
	require.NotNil(t, v.Navigation)
	assert.Equal(t, reconcile.StatusFail, v.Navigation.Status)
	assert.Equal(t, "X123", v.Navigation.Ref)
	assert.Equal(t, "/payment?status=fail&ref=X123", v.Navigation.Path)
	assert.False(t, v.Payment.InFlight)
}

func TestController_CompletionVerificationError(t *testing.T) {
	h := mounted(t, fullOrder())
	h.c.SetAcceptance(true)
	h.reconciler.err = &reconcile.VerificationError{
		TransactionID: "9001",
		Message:       "Unrecognised transaction status 99, please contact support.",
		Err:           &reconcile.UnmappedStatusError{Code: 99},
	}

	cfg, err := h.c.Pay(context.Background(), money.USD)
	require.NoError(t, err)
	require.NoError(t, h.widget.Complete(context.Background(), payment.Completion{TransactionID: "9001", TxRef: cfg.TxRef}))

	v := h.c.View()
	assert.Nil(t, v.Navigation)
	assert.Equal(t, "Unrecognised transaction status 99, please contact support.", v.Payment.Error)
	assert.Equal(t, StateReady, v.State)
	assert.Empty(t, v.Error)
	_, open := h.widget.Pending()
	assert.False(t, open)
}

func TestController_AbandonChangesNothing(t *testing.T) {
	h := mounted(t, fullOrder())
	h.c.SetAcceptance(true)

	_, err := h.c.Pay(context.Background(), money.NGN)
	require.NoError(t, err)
	before := h.c.View()

	h.widget.Abandon()

	assert.Equal(t, before, h.c.View())
	assert.Empty(t, h.reconciler.calls)
}

func TestController_PayInFlight(t *testing.T) {
	h := mounted(t, fullOrder())
	h.c.SetAcceptance(true)

	block := make(chan struct{})
	started := make(chan struct{})
	h.c.reconciler = reconcilerFunc(func(context.Context, string, string) (reconcile.NavigationTarget, error) {
		close(started)
		<-block
		return reconcile.NavigationTarget{Status: reconcile.StatusSuccess, Ref: "X123"}, nil
	})

	cfg, err := h.c.Pay(context.Background(), money.NGN)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- h.widget.Complete(context.Background(), payment.Completion{TransactionID: "1", TxRef: cfg.TxRef})
	}()
	<-started

	v := h.c.View()
	assert.True(t, v.Payment.InFlight)
	assert.False(t, v.Actions.PayNaira)
	_, err = h.c.Pay(context.Background(), money.NGN)
	require.ErrorIs(t, err, ErrPaymentInFlight)

	close(block)
	require.NoError(t, <-done)
	assert.NotNil(t, h.c.View().Navigation)
}

type reconcilerFunc func(ctx context.Context, transactionID, orderID string) (reconcile.NavigationTarget, error)

func (f reconcilerFunc) Reconcile(ctx context.Context, transactionID, orderID string) (reconcile.NavigationTarget, error) {
	return f(ctx, transactionID, orderID)
}

func TestController_CloseCancelsReload(t *testing.T) {
	h := mounted(t, fullOrder())
	h.c.SetDiscountCode("SAVE10")
	_, err := h.c.ClaimDiscount(context.Background())
	require.NoError(t, err)

	h.c.SetAcceptance(true)
	_, err = h.c.Pay(context.Background(), money.NGN)
	require.NoError(t, err)

	h.c.Close()

	assert.Equal(t, 1, h.sched.stops)
	h.sched.fire()
	assert.Equal(t, 1, h.loader.calls)
	_, open := h.widget.Pending()
	assert.False(t, open)

	_, err = h.c.Pay(context.Background(), money.NGN)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, h.c.Reload(context.Background()), ErrClosed)
}

func TestController_ExplicitReloadReplacesState(t *testing.T) {
	h := mounted(t, fullOrder())
	h.c.SetAcceptance(true)
	h.c.OpenTerms()
	h.loader.push(additionalOrder(), nil)

	require.NoError(t, h.c.Reload(context.Background()))

	v := h.c.View()
	assert.False(t, v.Accepted)
	assert.False(t, v.TermsOpen)
	assert.Equal(t, order.KindAdditionalPayment, v.Order.Settlement)
}

func TestController_ReloadClosesDialog(t *testing.T) {
	h := mounted(t, fullOrder())
	h.c.SetAcceptance(true)

	cfg, err := h.c.Pay(context.Background(), money.USD)
	require.NoError(t, err)
	assert.True(t, d("150").Equal(cfg.Amount))

	h.loader.push(claimedOrder(), nil)
	require.NoError(t, h.c.Reload(context.Background()))

	_, open := h.widget.Pending()
	assert.False(t, open)

	err = h.widget.Complete(context.Background(), payment.Completion{TransactionID: "9001", TxRef: cfg.TxRef})
	require.ErrorIs(t, err, payment.ErrNoPendingPayment)
	assert.Empty(t, h.reconciler.calls)
	assert.Nil(t, h.c.View().Navigation)
}

func TestController_ScheduledReloadClosesDialog(t *testing.T) {
	h := mounted(t, fullOrder())
	h.loader.push(claimedOrder(), nil)
	h.c.SetAcceptance(true)
	h.c.SetDiscountCode("SAVE10")

	_, err := h.c.ClaimDiscount(context.Background())
	require.NoError(t, err)

	cfg, err := h.c.Pay(context.Background(), money.NGN)
	require.NoError(t, err)

	h.sched.fire()

	_, open := h.widget.Pending()
	assert.False(t, open)
	require.ErrorIs(t, h.widget.Complete(context.Background(), payment.Completion{TransactionID: "9001", TxRef: cfg.TxRef}),
		payment.ErrNoPendingPayment)
	assert.Empty(t, h.reconciler.calls)
}

func TestController_ReloadFailureDropsSnapshot(t *testing.T) {
	h := mounted(t, fullOrder())
	h.loader.push(nil, &order.LoadError{OrderID: "42", Message: "Server error"})

	require.Error(t, h.c.Reload(context.Background()))

	v := h.c.View()
	assert.Equal(t, StateLoading, v.State)
	assert.Nil(t, v.Order)
	assert.Equal(t, "Server error", v.Error)
}
