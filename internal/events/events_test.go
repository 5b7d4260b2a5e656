package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() Event {
	return Event{
		ID:            uuid.New(),
		Type:          AppointmentBooked,
		AppointmentID: uuid.New(),
		PatientID:     uuid.New(),
		DoctorID:      uuid.New(),
		ActorID:       uuid.New(),
		ActorRole:     "patient",
		OccurredAt:    time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		Data:          map[string]string{"date": "2024-01-01", "time": "09:00"},
	}
}

func TestBusDeliversInOrderAndSurvivesFailures(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var seen []string

	bus.Subscribe("first", func(ctx context.Context, e Event) error {
		seen = append(seen, "first")
		return errors.New("boom")
	})
	bus.Subscribe("second", func(ctx context.Context, e Event) error {
		seen = append(seen, "second:"+string(e.Type))
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, []string{"first", "second:appointment.booked"}, seen)
}

type recordingPublisher struct {
	got []Event
	err error
}

func (r *recordingPublisher) Publish(_ context.Context, e Event) error {
	r.got = append(r.got, e)
	return r.err
}

func TestMultiPublishesToAll(t *testing.T) {
	boom := errors.New("down")
	a := &recordingPublisher{err: boom}
	b := &recordingPublisher{}

	err := Multi{a, b}.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

func TestRedisRelayRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []Event
	)
	done := make(chan error, 1)
	go func() {
		done <- Subscribe(ctx, client, "test:events", zerolog.Nop(), func(ctx context.Context, e Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, e)
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, "test:events").Result()
		return err == nil && n["test:events"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	// garbage is skipped
	require.NoError(t, client.Publish(ctx, "test:events", "not json").Err())

	want := sampleEvent()
	require.NoError(t, NewRedisPublisher(client, "test:events").Publish(ctx, want))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, want.ID, got[0].ID)
	assert.Equal(t, want.Type, got[0].Type)
	assert.Equal(t, want.Data, got[0].Data)
	assert.True(t, want.OccurredAt.Equal(got[0].OccurredAt))
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
