package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatch_DecodesTicketEvent(t *testing.T) {
	payload, _ := json.Marshal(TicketEvent{
		Type:          "reservation_paid",
		ReservationID: "res-1",
		Quantity:      2,
		TotalCents:    5000,
	})

	var got TicketEvent
	dispatch(context.Background(), payload, func(ctx context.Context, event TicketEvent) error {
		got = event
		return nil
	})

	assert.Equal(t, "reservation_paid", got.Type)
	assert.Equal(t, "res-1", got.ReservationID)
	assert.Equal(t, int64(5000), got.TotalCents)
}

func TestDispatch_SkipsMalformedPayload(t *testing.T) {
	called := false
	dispatch(context.Background(), []byte("not json"), func(ctx context.Context, event TicketEvent) error {
		called = true
		return nil
	})

	assert.False(t, called)
}

func TestDispatch_SwallowsHandlerError(t *testing.T) {
	assert.NotPanics(t, func() {
		dispatch(context.Background(), []byte(`{"type":"reservation_paid"}`), func(ctx context.Context, event TicketEvent) error {
			return errors.New("smtp down")
		})
	})
}
