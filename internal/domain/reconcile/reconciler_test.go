package reconcile

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func intPtr(v int) *int { return &v }

type mockVerifier struct {
	res   *VerifyResult
	err   error
	calls []Verification
}

func (m *mockVerifier) VerifyTransaction(_ context.Context, v Verification) (*VerifyResult, error) {
	m.calls = append(m.calls, v)
	return m.res, m.err
}

type fakeFieldErrors struct {
	keyed string
}

func (e *fakeFieldErrors) Error() string { return "status 400" }

func (e *fakeFieldErrors) Flatten(withKeys bool) string {
	if withKeys {
		return e.keyed
	}
	return "unkeyed"
}

func newTestReconciler(t *testing.T, v Verifier) (*Reconciler, *sdkmetric.ManualReader, *tracetest.SpanRecorder) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	spans := tracetest.NewSpanRecorder()
	r, err := NewReconciler(v,
		WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))),
		WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))),
	)
	require.NoError(t, err)
	return r, reader, spans
}

func outcomeCounts(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "checkout.reconcile.outcomes" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("status"))
				counts[v.AsString()] += dp.Value
			}
		}
	}
	return counts
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		code int
		want Status
	}{
		{code: 1, want: StatusSuccess},
		{code: 2, want: StatusFail},
		{code: 3, want: StatusPending},
	}
	for _, tt := range tests {
		got, err := MapStatus(tt.code)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	for _, code := range []int{0, 4, -1, 99} {
		_, err := MapStatus(code)
		var ue *UnmappedStatusError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, code, ue.Code)
	}
}

func TestNavigationTarget_Path(t *testing.T) {
	assert.Equal(t, "/payment?status=fail&ref=X123", NavigationTarget{Status: StatusFail, Ref: "X123"}.Path())
	assert.Equal(t, "/payment?status=success&ref=A%26B", NavigationTarget{Status: StatusSuccess, Ref: "A&B"}.Path())
}

func TestReconcile_FailStatus(t *testing.T) {
	v := &mockVerifier{res: &VerifyResult{Status: intPtr(2), OrderRef: "X123"}}
	r, reader, spans := newTestReconciler(t, v)

	target, err := r.Reconcile(context.Background(), "9001", "42")
	require.NoError(t, err)
	assert.Equal(t, NavigationTarget{Status: StatusFail, Ref: "X123"}, target)
	assert.Equal(t, []Verification{{OrderID: "42", TransactionID: "9001"}}, v.calls)

	assert.Equal(t, map[string]int64{"fail": 1}, outcomeCounts(t, reader))
	require.Len(t, spans.Ended(), 1)
	assert.Equal(t, "reconcile.Reconcile", spans.Ended()[0].Name())
}

func TestReconcile_UnmappedStatus(t *testing.T) {
	v := &mockVerifier{res: &VerifyResult{Status: intPtr(99), OrderRef: "X123"}}
	r, reader, _ := newTestReconciler(t, v)

	target, err := r.Reconcile(context.Background(), "9001", "42")
	assert.Zero(t, target)

	var ve *VerificationError
	require.ErrorAs(t, err, &ve)
	var ue *UnmappedStatusError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 99, ue.Code)

	assert.Equal(t, map[string]int64{"error": 1}, outcomeCounts(t, reader))
}

func TestReconcile_AbsentStatusIsPending(t *testing.T) {
	r, _, _ := newTestReconciler(t, &mockVerifier{res: &VerifyResult{OrderRef: "X123"}})

	target, err := r.Reconcile(context.Background(), "9001", "42")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, target.Status)
}

func TestReconcile_MissingOrderRef(t *testing.T) {
	r, reader, _ := newTestReconciler(t, &mockVerifier{res: &VerifyResult{Status: intPtr(1)}})

	target, err := r.Reconcile(context.Background(), "9001", "42")

	var ve *VerificationError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, err, ErrMissingOrderRef)
	assert.Equal(t, defaultVerifyMessage, ve.Message)
	assert.Equal(t, NavigationTarget{}, target)
	assert.Equal(t, map[string]int64{"error": 1}, outcomeCounts(t, reader))
}

func TestReconcile_Idempotent(t *testing.T) {
	v := &mockVerifier{res: &VerifyResult{Status: intPtr(1), OrderRef: "X123"}}
	r, reader, _ := newTestReconciler(t, v)

	first, err := r.Reconcile(context.Background(), "9001", "42")
	require.NoError(t, err)
	second, err := r.Reconcile(context.Background(), "9001", "42")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, v.calls, 2)
	assert.Equal(t, map[string]int64{"success": 2}, outcomeCounts(t, reader))
}

func TestReconcile_VerifierRejects(t *testing.T) {
	cause := &fakeFieldErrors{keyed: "transaction_id: Invalid transaction"}
	r, _, spans := newTestReconciler(t, &mockVerifier{err: cause})

	_, err := r.Reconcile(context.Background(), "9001", "42")

	var ve *VerificationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "transaction_id: Invalid transaction", ve.Message)
	assert.ErrorIs(t, err, cause)

	require.Len(t, spans.Ended(), 1)
	assert.NotEmpty(t, spans.Ended()[0].Events())
}

func TestReconcile_TransportFailure(t *testing.T) {
	r, _, _ := newTestReconciler(t, &mockVerifier{err: errors.New("timeout")})

	_, err := r.Reconcile(context.Background(), "9001", "42")

	var ve *VerificationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, defaultVerifyMessage, ve.Message)
}

func TestReconcile_MissingInput(t *testing.T) {
	v := &mockVerifier{}
	r, _, _ := newTestReconciler(t, v)

	_, err := r.Reconcile(context.Background(), "", "42")
	require.ErrorIs(t, err, ErrMissingTransaction)
	_, err = r.Reconcile(context.Background(), "9001", " ")
	require.ErrorIs(t, err, ErrMissingTransaction)
	assert.Empty(t, v.calls)
}
