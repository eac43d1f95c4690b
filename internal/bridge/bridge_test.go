package bridge_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/lumiavatar/internal/avatar3d"
	"github.com/normanking/lumiavatar/internal/bridge"
	"github.com/normanking/lumiavatar/internal/bus"
	"github.com/normanking/lumiavatar/internal/payload"
	"github.com/normanking/lumiavatar/internal/testutil"
)

type statusRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (s *statusRecorder) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *statusRecorder) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statuses...)
}

func (s *statusRecorder) last() string {
	all := s.all()
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

type audioRecorder struct {
	urls chan string
}

func (a *audioRecorder) Play(_ context.Context, url string) error {
	a.urls <- url
	return nil
}

type fixture struct {
	box    *payload.TextBox
	clock  *testutil.FakeClock
	rec    *testutil.ExpressionRecorder
	status *statusRecorder
	audio  *audioRecorder
	bridge *bridge.PollBridge
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		box:    payload.NewTextBox(),
		clock:  testutil.NewFakeClock(),
		rec:    testutil.NewExpressionRecorder(),
		status: &statusRecorder{},
		audio:  &audioRecorder{urls: make(chan string, 4)},
	}
	f.bridge = bridge.New(bridge.Config{
		Surface:   f.box,
		Scheduler: avatar3d.NewLipSyncScheduler(f.clock, zerolog.Nop()),
		Status:    f.status,
		Audio:     f.audio,
		Logger:    zerolog.Nop(),
	})
	f.bridge.SetAvatar(avatar3d.NewAvatar(f.rec, nil))
	return f
}

func TestPoll_FullPayload(t *testing.T) {
	f := newFixture(t)
	f.box.Set(`{"emotion":"sad","visemes":[{"phoneme":"a","start":0,"end":0.5}],"text":"hi","audio_url":null}`)

	require.True(t, f.bridge.Poll())

	assert.Equal(t, float32(0.7), f.rec.Value(avatar3d.ExpressionSad))
	assert.Equal(t, float32(0), f.rec.Value(avatar3d.ExpressionHappy))

	f.clock.Advance(0)
	assert.Equal(t, float32(0.9), f.rec.Value(avatar3d.ExpressionAa))

	f.clock.Advance(500 * time.Millisecond)
	assert.Equal(t, float32(0), f.rec.Value(avatar3d.ExpressionAa))

	assert.Equal(t, "Speaking: hi...", f.status.last())
	select {
	case url := <-f.audio.urls:
		t.Fatalf("unexpected audio playback of %q", url)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPoll_IdenticalPayloadIsProcessedOnce(t *testing.T) {
	f := newFixture(t)
	raw := `{"emotion":"happy","visemes":[{"phoneme":"o","start":0,"end":0.1}],"text":"again"}`

	f.box.Set(raw)
	require.True(t, f.bridge.Poll())
	f.clock.Advance(time.Second)

	f.rec.ResetCalls()
	pending := f.clock.Pending()
	statuses := len(f.status.all())

	f.box.Set(raw)
	assert.False(t, f.bridge.Poll())

	assert.Empty(t, f.rec.Calls())
	assert.Equal(t, pending, f.clock.Pending())
	assert.Len(t, f.status.all(), statuses)
}

func TestPoll_MalformedPayload(t *testing.T) {
	f := newFixture(t)
	f.rec.SetValue(avatar3d.ExpressionHappy, 0.8)
	f.rec.ResetCalls()

	f.box.Set(`{"emotion":"sad",`)
	require.True(t, f.bridge.Poll())

	assert.Equal(t, "Ready", f.status.last())
	assert.Empty(t, f.rec.Calls())
	assert.Equal(t, 0, f.clock.Pending())
	assert.Equal(t, float32(0.8), f.rec.Value(avatar3d.ExpressionHappy))
}

func TestPoll_NullPayload(t *testing.T) {
	f := newFixture(t)
	f.rec.SetValue(avatar3d.ExpressionHappy, 0.8)
	f.rec.ResetCalls()

	f.box.Set("null")
	require.True(t, f.bridge.Poll())

	assert.Equal(t, "Ready", f.status.last())
	assert.Empty(t, f.rec.Calls())
	assert.Equal(t, float32(0.8), f.rec.Value(avatar3d.ExpressionHappy))
}

func TestPoll_NonObjectJSON(t *testing.T) {
	for _, raw := range []string{"[]", "42", `"hello"`} {
		t.Run(raw, func(t *testing.T) {
			f := newFixture(t)
			f.rec.SetValue(avatar3d.ExpressionHappy, 0.8)

			f.box.Set(raw)
			require.True(t, f.bridge.Poll())

			assert.Equal(t, "Speaking", f.status.last())
			assert.Equal(t, float32(0), f.rec.Value(avatar3d.ExpressionHappy))
			assert.Equal(t, 0, f.clock.Pending())
		})
	}
}

func TestPoll_NonStringTextReadsAsEmpty(t *testing.T) {
	f := newFixture(t)
	f.rec.SetValue(avatar3d.ExpressionSad, 0.7)

	f.box.Set(`{"text":5,"emotion":"happy","visemes":[{"phoneme":"a","start":0,"end":0.1}]}`)
	require.True(t, f.bridge.Poll())

	assert.Equal(t, "Speaking", f.status.last())
	assert.Equal(t, float32(0.8), f.rec.Value(avatar3d.ExpressionHappy))
	assert.Equal(t, float32(0), f.rec.Value(avatar3d.ExpressionSad))
	assert.Equal(t, 2, f.clock.Pending())
}

func TestPoll_EmptyTextIsIgnored(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.bridge.Poll())
	assert.Empty(t, f.status.all())
}

func TestPoll_PlaysResolvedAudio(t *testing.T) {
	f := newFixture(t)
	f.box.Set(`{"text":"with audio","audio_url":"/api/v1/chat/audio/abc"}`)
	f.bridge.Poll()

	select {
	case url := <-f.audio.urls:
		assert.Equal(t, "/api/v1/chat/audio/abc", url)
	case <-time.After(time.Second):
		t.Fatal("audio was not played")
	}
}

func TestPoll_DefaultsWithoutTextOrEmotion(t *testing.T) {
	f := newFixture(t)
	f.rec.SetValue(avatar3d.ExpressionAngry, 0.7)

	f.box.Set(`{"visemes":[]}`)
	f.bridge.Poll()

	assert.Equal(t, "Speaking", f.status.last())
	assert.Equal(t, float32(0), f.rec.Value(avatar3d.ExpressionAngry))
	assert.Equal(t, 0, f.clock.Pending())
}

func TestPoll_WithoutModel(t *testing.T) {
	f := newFixture(t)
	f.bridge.SetAvatar(nil)

	f.box.Set(`{"emotion":"happy","visemes":[{"phoneme":"a","start":0,"end":0.2}],"text":"no model"}`)
	require.True(t, f.bridge.Poll())

	assert.Empty(t, f.rec.Calls())
	assert.Equal(t, 0, f.clock.Pending())
	assert.Equal(t, "Speaking: no model...", f.status.last())
}

func TestPoll_NewPayloadCancelsPendingVisemes(t *testing.T) {
	f := newFixture(t)

	f.box.Set(`{"visemes":[{"phoneme":"a","start":0.5,"end":0.6}]}`)
	f.bridge.Poll()

	f.box.Set(`{"visemes":[{"phoneme":"i","start":0,"end":0.1}]}`)
	f.bridge.Poll()

	f.rec.ResetCalls()
	f.clock.Advance(time.Second)
	for _, c := range f.rec.Calls() {
		assert.Equal(t, avatar3d.ExpressionIh, c.Name)
	}
}

func TestPoll_PublishesEvents(t *testing.T) {
	f := newFixture(t)
	b := bus.New()

	var mu sync.Mutex
	seen := map[bus.EventType]map[string]any{}
	b.SubscribeMultiple([]bus.EventType{
		bus.EventPayloadReceived,
		bus.EventEmotionChanged,
		bus.EventVisemesScheduled,
		bus.EventStatusChanged,
	}, func(e bus.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen[e.Type] = e.Data
	})

	br := bridge.New(bridge.Config{
		Surface:   f.box,
		Scheduler: avatar3d.NewLipSyncScheduler(f.clock, zerolog.Nop()),
		Bus:       b,
		Logger:    zerolog.Nop(),
	})
	br.SetAvatar(avatar3d.NewAvatar(f.rec, nil))

	f.box.Set(`{"emotion":"angry","visemes":[{"phoneme":"u","start":0,"end":0.1}],"text":"events"}`)
	br.Poll()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 4
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "angry", seen[bus.EventEmotionChanged]["emotion"])
	assert.Equal(t, 1, seen[bus.EventVisemesScheduled]["visemes"])
	assert.Equal(t, "Speaking: events...", seen[bus.EventStatusChanged]["status"])
	assert.Equal(t, "events", seen[bus.EventPayloadReceived]["text"])
}

func TestRun_ChangeSignalWakesBridge(t *testing.T) {
	f := newFixture(t)
	br := bridge.New(bridge.Config{
		Surface:   f.box,
		Scheduler: avatar3d.NewLipSyncScheduler(f.clock, zerolog.Nop()),
		Status:    f.status,
		Interval:  time.Hour,
		Logger:    zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- br.Run(ctx) }()

	f.box.Set(`{"text":"wake up"}`)
	assert.Eventually(t, func() bool { return f.status.last() == "Speaking: wake up..." }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}
}

type plainSurface struct {
	mu   sync.Mutex
	text string
}

func (s *plainSurface) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

func (s *plainSurface) set(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
}

func TestRun_PollsOnInterval(t *testing.T) {
	surface := &plainSurface{}
	status := &statusRecorder{}
	br := bridge.New(bridge.Config{
		Surface:   surface,
		Scheduler: avatar3d.NewLipSyncScheduler(testutil.NewFakeClock(), zerolog.Nop()),
		Status:    status,
		Interval:  10 * time.Millisecond,
		Logger:    zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = br.Run(ctx) }()

	surface.set("garbage")
	assert.Eventually(t, func() bool { return status.last() == "Ready" }, time.Second, 5*time.Millisecond)
}

func TestSpeakingStatus(t *testing.T) {
	assert.Equal(t, "Speaking", bridge.SpeakingStatus(""))
	assert.Equal(t, "Speaking: hi...", bridge.SpeakingStatus("hi"))
	assert.Equal(t, "Speaking: 0123456789012345678901...", bridge.SpeakingStatus("0123456789012345678901234"))
	assert.Equal(t, "Speaking: 안녕하세요...", bridge.SpeakingStatus("안녕하세요"))
	assert.Equal(t, "Model load failed. Check model/lumi.vrm", bridge.ModelFailedStatus("model/lumi.vrm"))
}
