package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotifier(t *testing.T) {
	t.Run("should deliver to every subscriber", func(t *testing.T) {
		notifier := NewNotifier()
		first := notifier.Subscribe()
		second := notifier.Subscribe()
		defer first.Close()
		defer second.Close()

		notifier.Publish(EventMealSaved)

		for _, sub := range []*Subscription{first, second} {
			select {
			case event := <-sub.C:
				assert.Equal(t, EventMealSaved, event)
			case <-time.After(time.Second):
				t.Fatal("subscriber did not receive the event")
			}
		}
	})

	t.Run("should stop delivering after close", func(t *testing.T) {
		notifier := NewNotifier()
		sub := notifier.Subscribe()
		sub.Close()

		assert.NotPanics(t, func() { notifier.Publish(EventMealDeleted) })

		_, open := <-sub.C
		assert.False(t, open)
	})

	t.Run("closing twice is harmless", func(t *testing.T) {
		notifier := NewNotifier()
		sub := notifier.Subscribe()
		sub.Close()
		assert.NotPanics(t, sub.Close)
	})

	t.Run("a slow subscriber never blocks the publisher", func(t *testing.T) {
		notifier := NewNotifier()
		sub := notifier.Subscribe()
		defer sub.Close()

		done := make(chan struct{})
		go func() {
			for i := 0; i < 100; i++ {
				notifier.Publish(EventMealSaved)
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publish blocked on a slow subscriber")
		}
	})
}
