package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bes-checkout/internal/domain/checkout"
	"github.com/xenking/bes-checkout/internal/domain/money"
	"github.com/xenking/bes-checkout/internal/domain/payment"
)

func newIdleController(w payment.Widget) *checkout.Controller {
	return checkout.New(checkout.Config{
		OrderID: "42",
		Session: checkout.Session{Token: "tok"},
		Builder: payment.NewBuilder(payment.BuilderOptions{}),
		Widget:  w,
	})
}

func TestStore_GetTouches(t *testing.T) {
	s := NewStore(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	w := &payment.HostedWidget{}
	sess := s.Add("tok", newIdleController(w), w)

	now = now.Add(50 * time.Second)
	_, err := s.Get(sess.ID, "tok")
	require.NoError(t, err)

	now = now.Add(50 * time.Second)
	assert.Zero(t, s.Sweep(), "touched within ttl")
	assert.Equal(t, 1, s.Len())

	now = now.Add(61 * time.Second)
	assert.Equal(t, 1, s.Sweep())
	assert.Zero(t, s.Len())

	_, err = s.Get(sess.ID, "tok")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_SweepClosesController(t *testing.T) {
	s := NewStore(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	w := &payment.HostedWidget{}
	ctrl := newIdleController(w)
	s.Add("tok", ctrl, w)

	now = now.Add(2 * time.Minute)
	require.Equal(t, 1, s.Sweep())

	_, err := ctrl.Pay(context.Background(), money.NGN)
	require.ErrorIs(t, err, checkout.ErrClosed)
}

func TestStore_Delete(t *testing.T) {
	s := NewStore(0)
	assert.Equal(t, DefaultSessionTTL, s.ttl)

	w := &payment.HostedWidget{}
	sess := s.Add("tok", newIdleController(w), w)

	require.ErrorIs(t, s.Delete(sess.ID, "other"), ErrSessionForbidden)
	require.NoError(t, s.Delete(sess.ID, "tok"))
	require.ErrorIs(t, s.Delete(sess.ID, "tok"), ErrSessionNotFound)
}

func TestStore_RunClosesAllOnShutdown(t *testing.T) {
	s := NewStore(time.Minute)
	w := &payment.HostedWidget{}
	ctrl := newIdleController(w)
	s.Add("tok", ctrl, w)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.Zero(t, s.Len())

	_, err := ctrl.Pay(context.Background(), money.NGN)
	require.ErrorIs(t, err, checkout.ErrClosed)
}
