package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChanEmitter_EmitAndSubscribe(t *testing.T) {
	e := NewChanEmitter(4)
	sub := e.Subscribe()

	e.Emit(context.Background(), Event{
		Type:      EventPlanReady,
		Data:      PlanReadyData{PlanID: "p1", Moves: 3, Mutating: true},
		Timestamp: time.Now(),
	})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, EventPlanReady, ev.Type)
		data, ok := ev.Data.(PlanReadyData)
		require.True(t, ok)
		assert.Equal(t, "p1", data.PlanID)
		assert.True(t, data.Mutating)
	case <-time.After(time.Second):
		t.Fatal("событие не получено")
	}
}

func TestChanEmitter_EmitAfterCloseIsNoop(t *testing.T) {
	e := NewChanEmitter(1)
	e.Close()

	// Не должно паниковать на закрытом канале
	e.Emit(context.Background(), Event{Type: EventMessage})
}

func TestChanEmitter_CloseSignalsSubscribers(t *testing.T) {
	e := NewChanEmitter(0)
	sub := e.Subscribe()
	e.Close()

	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestChanEmitter_EmitRespectsContext(t *testing.T) {
	// Небуферизованный канал без читателя: Emit блокируется
	e := NewChanEmitter(0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		e.Emit(ctx, Event{Type: EventMessage})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit не вернулся после отмены контекста")
	}
}

func TestChanEmitter_DoubleCloseIsSafe(t *testing.T) {
	e := NewChanEmitter(1)
	e.Close()
	e.Close()
}
