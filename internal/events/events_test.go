package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()

	var created []Event
	bus.Subscribe(BookingCreated, func(e Event) {
		created = append(created, e)
	})

	var cancelled int
	bus.Subscribe(BookingCancelled, func(e Event) { cancelled++ })

	bus.Publish(Event{Type: BookingCreated, BookingID: 1, UserID: 10})
	bus.Publish(Event{Type: BookingCreated, BookingID: 2, UserID: 10})
	bus.Publish(Event{Type: BookingCancelled, BookingID: 1, UserID: 10})

	assert.Len(t, created, 2)
	assert.Equal(t, int64(2), created[1].BookingID)
	assert.Equal(t, 1, cancelled)
	assert.False(t, created[0].CreatedAt.IsZero(), "publish stamps the event time")
}

func TestBusNoSubscribers(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.Publish(Event{Type: ReminderSent, BookingID: 1})
	})
}
