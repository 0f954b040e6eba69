package ingest_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/saferoute/internal/broadcast"
	"github.com/saferoute/saferoute/internal/hazard"
	"github.com/saferoute/saferoute/internal/ingest"
)

var epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu       sync.Mutex
	messages []broadcast.Message
}

func (r *recorder) Publish(msg broadcast.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recorder) all() []broadcast.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast.Message(nil), r.messages...)
}

func newService() (*ingest.Service, *hazard.Store, *recorder) {
	clock := clockwork.NewFakeClockAt(epoch)
	store := hazard.NewStore(hazard.StoreConfig{Clock: clock, Logger: zerolog.Nop()})
	rec := &recorder{}
	svc := ingest.NewService(ingest.ServiceConfig{
		Store:     store,
		Publisher: rec,
		Clock:     clock,
		Logger:    zerolog.Nop(),
	})
	return svc, store, rec
}

func boolPtr(b bool) *bool { return &b }

func TestService_WeatherEvents(t *testing.T) {
	tests := []struct {
		event     string
		condition hazard.Condition
		intensity float64
	}{
		{ingest.EventStartStorm, hazard.ConditionStorm, 0.8},
		{ingest.EventStartRain, hazard.ConditionRain, 0.6},
		{ingest.EventStartFog, hazard.ConditionFog, 0.7},
		{ingest.EventClearWeather, hazard.ConditionClear, 0},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			svc, store, rec := newService()

			res, err := svc.Apply(context.Background(), ingest.Event{Name: tt.event})
			require.NoError(t, err)
			assert.Equal(t, tt.event, res.Event)
			assert.Equal(t, "Event "+tt.event+" applied successfully", res.Message)
			assert.Equal(t, tt.condition, res.State.WeatherCondition)
			assert.Equal(t, store.Read(), res.State)

			msgs := rec.all()
			require.Len(t, msgs, 2)
			assert.Equal(t, broadcast.TypeWeatherUpdate, msgs[0].Type)
			update, ok := msgs[0].Payload.(broadcast.WeatherUpdate)
			require.True(t, ok)
			assert.Equal(t, string(tt.condition), update.Condition)
			assert.Equal(t, tt.intensity, update.Intensity)
			assert.Equal(t, epoch, update.StartsAt)

			assert.Equal(t, broadcast.TypeEventApplied, msgs[1].Type)
			summary, ok := msgs[1].Payload.(broadcast.EventApplied)
			require.True(t, ok)
			assert.Equal(t, tt.event, summary.Event)
			assert.Equal(t, epoch, summary.Timestamp)
		})
	}
}

func TestService_StormWindow(t *testing.T) {
	svc, _, rec := newService()

	_, err := svc.Apply(context.Background(), ingest.Event{Name: ingest.EventStartStorm})
	require.NoError(t, err)

	update := rec.all()[0].Payload.(broadcast.WeatherUpdate)
	assert.Equal(t, epoch.Add(time.Hour), update.EndsAt)
}

func TestService_CrowdEvents(t *testing.T) {
	svc, _, rec := newService()

	res, err := svc.Apply(context.Background(), ingest.Event{Name: ingest.EventCrowdSpike})
	require.NoError(t, err)
	assert.Equal(t, ingest.CrowdSpikePenalty, res.State.GlobalCrowdPenalty)
	assert.Equal(t, broadcast.CrowdUpdate{Global: true, Penalty: 20}, rec.all()[0].Payload)

	res, err = svc.Apply(context.Background(), ingest.Event{Name: ingest.EventClearCrowdSpike})
	require.NoError(t, err)
	assert.Zero(t, res.State.GlobalCrowdPenalty)
	assert.Equal(t, broadcast.CrowdUpdate{Global: true, Penalty: 0}, rec.all()[2].Payload)
}

func TestService_ToggleConstruction(t *testing.T) {
	svc, _, rec := newService()
	ctx := context.Background()

	res, err := svc.Apply(ctx, ingest.Event{Name: ingest.EventToggleConstruction})
	require.NoError(t, err)
	assert.Equal(t, hazard.ConstructionPenaltyValue, res.State.GlobalConstructionPenalty)

	delta := rec.all()[0].Payload.(broadcast.EventApplied)
	assert.Equal(t, "construction", delta.Event)
	require.NotNil(t, delta.Active)
	assert.True(t, *delta.Active)
	assert.Equal(t, 15.0, *delta.Penalty)

	res, err = svc.Apply(ctx, ingest.Event{Name: ingest.EventToggleConstruction})
	require.NoError(t, err)
	assert.Zero(t, res.State.GlobalConstructionPenalty, "absent active flips")

	res, err = svc.Apply(ctx, ingest.Event{Name: ingest.EventToggleConstruction, Active: boolPtr(false)})
	require.NoError(t, err)
	assert.Zero(t, res.State.GlobalConstructionPenalty, "explicit false stays off")
}

func TestService_UnknownEvent(t *testing.T) {
	svc, store, rec := newService()
	before := store.Read()

	_, err := svc.Apply(context.Background(), ingest.Event{Name: "meteorStrike"})
	require.ErrorIs(t, err, ingest.ErrUnknownEvent)
	assert.Equal(t, before, store.Read())
	assert.Empty(t, rec.all())
}

func TestService_RepeatedEventBroadcastsEachTime(t *testing.T) {
	svc, store, rec := newService()
	ctx := context.Background()

	first, err := svc.Apply(ctx, ingest.Event{Name: ingest.EventStartStorm})
	require.NoError(t, err)
	second, err := svc.Apply(ctx, ingest.Event{Name: ingest.EventStartStorm})
	require.NoError(t, err)

	assert.Equal(t, first.State, second.State)
	assert.Equal(t, second.State, store.Read())
	assert.Len(t, rec.all(), 4)
}

func TestService_WithHub(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	store := hazard.NewStore(hazard.StoreConfig{Clock: clock, Logger: zerolog.Nop()})
	hub := broadcast.NewHub(broadcast.HubConfig{
		Snapshot: func() any { return store.Read() },
		Clock:    clock,
		Logger:   zerolog.Nop(),
	})
	svc := ingest.NewService(ingest.ServiceConfig{Store: store, Publisher: hub, Clock: clock, Logger: zerolog.Nop()})

	o := hub.Subscribe()
	_, err := svc.Apply(context.Background(), ingest.Event{Name: ingest.EventCrowdSpike})
	require.NoError(t, err)

	types := []broadcast.MessageType{}
	for i := 0; i < 3; i++ {
		types = append(types, (<-o.C()).Type)
	}
	assert.Equal(t, []broadcast.MessageType{broadcast.TypeSnapshot, broadcast.TypeCrowdUpdate, broadcast.TypeEventApplied}, types)
}

func TestService_LateObserverSeesLastAppliedState(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	store := hazard.NewStore(hazard.StoreConfig{Clock: clock, Logger: zerolog.Nop()})
	hub := broadcast.NewHub(broadcast.HubConfig{
		Snapshot: func() any { return store.Read() },
		Clock:    clock,
		Logger:   zerolog.Nop(),
	})
	svc := ingest.NewService(ingest.ServiceConfig{Store: store, Publisher: hub, Clock: clock, Logger: zerolog.Nop()})
	ctx := context.Background()

	_, err := svc.Apply(ctx, ingest.Event{Name: ingest.EventStartStorm})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	res, err := svc.Apply(ctx, ingest.Event{Name: ingest.EventCrowdSpike})
	require.NoError(t, err)

	o := hub.Subscribe()
	defer hub.Unsubscribe(o)

	first := <-o.C()
	assert.Equal(t, broadcast.TypeSnapshot, first.Type)
	assert.Equal(t, res.State, first.Payload)

	state, ok := first.Payload.(hazard.State)
	require.True(t, ok)
	assert.Equal(t, hazard.ConditionStorm, state.WeatherCondition)
	assert.Equal(t, ingest.CrowdSpikePenalty, state.GlobalCrowdPenalty)
	assert.Equal(t, epoch.Add(time.Minute), state.UpdatedAt)

	select {
	case msg := <-o.C():
		t.Fatalf("unexpected message after snapshot: %s", msg.Type)
	default:
	}
}

func TestEvents(t *testing.T) {
	for _, name := range ingest.Events() {
		_, err := ingest.Transition(ingest.Event{Name: name})
		assert.NoError(t, err, name)
	}
}
