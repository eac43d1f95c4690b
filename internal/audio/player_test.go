package audio

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/lumiavatar/internal/config"
)

type fakeFetcher struct {
	data map[string][]byte
}

func (f *fakeFetcher) FetchAudio(_ context.Context, url string) ([]byte, error) {
	data, ok := f.data[url]
	if !ok {
		return nil, errors.New("audio fetch failed: 404")
	}
	return data, nil
}

type recordedRun struct {
	name    string
	args    []string
	content string
}

func enabledConfig() config.AudioConfig {
	return config.AudioConfig{Enabled: true, Player: "ffplay", Args: []string{"-nodisp", "-autoexit"}}
}

func TestPlay_WritesFileAndRunsPlayer(t *testing.T) {
	var runs []recordedRun
	run := func(_ context.Context, name string, args ...string) error {
		data, err := os.ReadFile(args[len(args)-1])
		require.NoError(t, err)
		runs = append(runs, recordedRun{name: name, args: args[:len(args)-1], content: string(data)})
		return nil
	}

	fetch := &fakeFetcher{data: map[string][]byte{"/a.mp3": []byte("mp3-bytes")}}
	p := NewPlayer(enabledConfig(), fetch, run, zerolog.Nop())

	require.NoError(t, p.Play(context.Background(), "/a.mp3"))
	require.Len(t, runs, 1)
	assert.Equal(t, "ffplay", runs[0].name)
	assert.Equal(t, []string{"-nodisp", "-autoexit"}, runs[0].args)
	assert.Equal(t, "mp3-bytes", runs[0].content)
}

func TestPlay_FetchError(t *testing.T) {
	p := NewPlayer(enabledConfig(), &fakeFetcher{}, func(context.Context, string, ...string) error {
		t.Fatal("player must not run")
		return nil
	}, zerolog.Nop())

	err := p.Play(context.Background(), "/missing.mp3")
	assert.ErrorContains(t, err, "fetch audio")
}

func TestPlay_Disabled(t *testing.T) {
	cfg := enabledConfig()
	cfg.Enabled = false
	p := NewPlayer(cfg, nil, nil, zerolog.Nop())

	assert.False(t, p.Enabled())
	assert.NoError(t, p.Play(context.Background(), "/a.mp3"))

	var nilPlayer *Player
	assert.NoError(t, nilPlayer.Play(context.Background(), "/a.mp3"))
}

func TestPlay_NoPlayerCommand(t *testing.T) {
	cfg := enabledConfig()
	cfg.Player = ""
	p := NewPlayer(cfg, &fakeFetcher{}, nil, zerolog.Nop())

	assert.ErrorIs(t, p.Play(context.Background(), "/a.mp3"), ErrNoPlayer)
}

func TestPlay_NewClipStopsPrevious(t *testing.T) {
	started := make(chan struct{}, 2)
	run := func(ctx context.Context, _ string, _ ...string) error {
		started <- struct{}{}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return nil
		}
	}

	fetch := &fakeFetcher{data: map[string][]byte{"/1": []byte("1"), "/2": []byte("2")}}
	p := NewPlayer(enabledConfig(), fetch, run, zerolog.Nop())

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstErr = p.Play(context.Background(), "/1")
	}()

	<-started
	require.NoError(t, p.Play(context.Background(), "/2"))
	wg.Wait()

	assert.NoError(t, firstErr, "a clip stopped by a newer one is not an error")
}

func TestPlay_RunnerError(t *testing.T) {
	fetch := &fakeFetcher{data: map[string][]byte{"/a": []byte("a")}}
	p := NewPlayer(enabledConfig(), fetch, func(context.Context, string, ...string) error {
		return errors.New("exit status 1")
	}, zerolog.Nop())

	assert.ErrorContains(t, p.Play(context.Background(), "/a"), "run ffplay")
}

func TestStop(t *testing.T) {
	started := make(chan struct{})
	fetch := &fakeFetcher{data: map[string][]byte{"/a": []byte("a")}}
	p := NewPlayer(enabledConfig(), fetch, func(ctx context.Context, _ string, _ ...string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- p.Play(context.Background(), "/a") }()

	<-started
	p.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop did not end playback")
	}
}
