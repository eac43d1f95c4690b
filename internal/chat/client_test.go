package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/lumiavatar/internal/avatar3d"
	"github.com/normanking/lumiavatar/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&ClientConfig{
		BaseURL:   srv.URL + "/",
		Timeout:   5 * time.Second,
		SessionID: "test-session",
		UserID:    "test-user",
	}, zerolog.Nop())
}

func TestSend(t *testing.T) {
	var got Request
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/chat/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":"Hi!","text":"Hi!","emotion":"happy","audio_url":"/api/v1/chat/audio/abc",
			"visemes":[{"phoneme":"i","start":0.02,"end":0.13}],"tool_used":null,"cached":false,
			"timestamp":"2025-01-01T00:00:00Z"}`)
	}))

	resp, err := client.Send(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, Request{Message: "hello", SessionID: "test-session", UserID: "test-user"}, got)
	assert.Equal(t, "Hi!", resp.Reply())
	assert.Equal(t, "happy", resp.Emotion)
	require.NotNil(t, resp.AudioURL)
	assert.Equal(t, "/api/v1/chat/audio/abc", *resp.AudioURL)
	assert.Nil(t, resp.ToolUsed)
	assert.Equal(t, []avatar3d.Viseme{{Phoneme: "i", Start: 0.02, End: 0.13}}, resp.Visemes)

	p := resp.Payload()
	assert.Equal(t, "Hi!", p.Text)
	assert.Equal(t, "/api/v1/chat/audio/abc", p.AudioURL)
}

func TestSend_HTTPError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "graph exploded")
	}))

	_, err := client.Send(context.Background(), "hello")
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 500, httpErr.StatusCode)
	assert.Equal(t, "graph exploded", httpErr.Body)
	assert.Equal(t, "backend chat failed: 500 graph exploded", err.Error())
}

func TestSend_ValidatesBeforeSending(t *testing.T) {
	called := false
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := client.Send(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = client.Send(context.Background(), strings.Repeat("가", MaxMessageLength+1))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.False(t, called)
}

func TestRequestValidate(t *testing.T) {
	assert.NoError(t, Request{Message: strings.Repeat("a", MaxMessageLength), SessionID: "s"}.Validate())
	assert.Error(t, Request{Message: "hi"}.Validate())
	assert.Error(t, Request{Message: "hi", SessionID: strings.Repeat("s", 101)}.Validate())
	assert.Error(t, Request{Message: "hi", SessionID: "s", UserID: strings.Repeat("u", 101)}.Validate())
}

func TestNewClient_RandomSession(t *testing.T) {
	a := NewClient(&ClientConfig{BaseURL: "http://h:8000"}, zerolog.Nop())
	b := NewClient(&ClientConfig{BaseURL: "http://h:8000"}, zerolog.Nop())

	_, err := uuid.Parse(a.SessionID())
	assert.NoError(t, err)
	assert.NotEqual(t, a.SessionID(), b.SessionID())

	c := NewClient(ConfigFromAPI(config.DefaultConfig().API), zerolog.Nop())
	assert.Equal(t, "http://127.0.0.1:8000", c.BaseURL())
}

func TestResolveAudioURL(t *testing.T) {
	client := NewClient(&ClientConfig{BaseURL: "http://h:8000"}, zerolog.Nop())

	assert.Equal(t, "http://h:8000/a.mp3", client.ResolveAudioURL("/a.mp3"))
	assert.Equal(t, "http://h:8000/a.mp3", client.ResolveAudioURL("a.mp3"))
	assert.Equal(t, "https://cdn.example.com/a.mp3", client.ResolveAudioURL("https://cdn.example.com/a.mp3"))
	assert.Equal(t, "http://other/a.mp3", client.ResolveAudioURL("http://other/a.mp3"))
}

func TestFetchAudio(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/audio/abc" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake"))
	}))

	data, err := client.FetchAudio(context.Background(), "/api/v1/chat/audio/abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3fake"), data)

	_, err = client.FetchAudio(context.Background(), "/api/v1/chat/audio/missing")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "audio fetch failed: 404", err.Error())
}

func TestHealth(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/", r.URL.Path)
		fmt.Fprint(w, `{"status":"healthy","service":"lumi-agent","environment":"test","version":"0.1.0"}`)
	}))

	status, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "lumi-agent", status.Service)
}

func sseHandler(events ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, ev := range events {
			_, _ = io.WriteString(w, ev)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func TestStream(t *testing.T) {
	client := newTestClient(t, sseHandler(
		"data: {\"type\":\"thinking\",\"node\":\"router\"}\n\n",
		": keep-alive\n\n",
		"data: {\"type\":\"token\",\"content\":\"Hel\"}\n\n",
		"data: {\"type\":\"token\",\"content\":\"lo\"}\n\n",
		"data: not json\n\n",
		"data: {\"type\":\"response\",\"text\":\"Hello\",\"emotion\":\"sad\",\"audio_url\":\"/a.mp3\",\"visemes\":[{\"phoneme\":\"e\",\"start\":0.02,\"end\":0.13}]}\n\n",
		"data: {\"type\":\"done\"}\n\n",
	))

	var types []StreamEventType
	var tokens strings.Builder
	reply, err := client.Stream(context.Background(), "hi", func(ev StreamEvent) error {
		types = append(types, ev.Type)
		if ev.Type == StreamToken {
			tokens.WriteString(ev.Content)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []StreamEventType{StreamThinking, StreamToken, StreamToken, StreamResponse, StreamDone}, types)
	assert.Equal(t, "Hello", tokens.String())
	assert.Equal(t, "Hello", reply.Reply())
	assert.Equal(t, "sad", reply.Emotion)
	require.NotNil(t, reply.AudioURL)
	assert.Equal(t, "/a.mp3", *reply.AudioURL)
	assert.Len(t, reply.Visemes, 1)
}

func TestStream_ErrorEvent(t *testing.T) {
	client := newTestClient(t, sseHandler(
		"data: {\"type\":\"error\",\"error\":\"llm unavailable\"}\n\n",
		"data: {\"type\":\"done\"}\n\n",
	))

	_, err := client.Stream(context.Background(), "hi", nil)
	assert.EqualError(t, err, "stream error: llm unavailable")
}

func TestStream_EndsWithoutDone(t *testing.T) {
	client := newTestClient(t, sseHandler(
		"data: {\"type\":\"response\",\"text\":\"partial\"}",
	))

	reply, err := client.Stream(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "partial", reply.Reply())

	client = newTestClient(t, sseHandler("data: {\"type\":\"token\",\"content\":\"x\"}\n\n"))
	_, err = client.Stream(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestStream_HandlerStops(t *testing.T) {
	client := newTestClient(t, sseHandler(
		"data: {\"type\":\"token\",\"content\":\"x\"}\n\n",
		"data: {\"type\":\"done\"}\n\n",
	))

	stop := errors.New("stop")
	_, err := client.Stream(context.Background(), "hi", func(StreamEvent) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestSSEReader_MultiLineData(t *testing.T) {
	r := newSSEReader(strings.NewReader("event: update\r\nid: 7\r\ndata: a\r\ndata: b\r\n\r\n"))

	ev, err := r.next()
	require.NoError(t, err)
	assert.Equal(t, "update", ev.Event)
	assert.Equal(t, "7", ev.ID)
	assert.Equal(t, "a\nb", ev.Data)

	_, err = r.next()
	assert.ErrorIs(t, err, io.EOF)
}
