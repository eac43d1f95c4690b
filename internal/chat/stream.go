package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// StreamHandler receives every decoded event in arrival order. Returning an
// error stops the stream.
type StreamHandler func(StreamEvent) error

// Stream posts a message to the streaming endpoint and feeds events to
// handler until the server sends done. The reply assembled from the
// response event is returned.
func (c *Client) Stream(ctx context.Context, message string, handler StreamHandler) (*Response, error) {
	body, err := c.request(message)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, c.streamClient, "/api/v1/chat/stream", body, "text/event-stream")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus("backend chat stream", resp); err != nil {
		return nil, err
	}

	var reply *Response
	reader := newSSEReader(resp.Body)

	for {
		ev, err := reader.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if reply != nil {
					return reply, nil
				}
				return nil, fmt.Errorf("stream ended before a response: %w", io.ErrUnexpectedEOF)
			}
			return nil, fmt.Errorf("read stream: %w", err)
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(ev.Data), &event); err != nil {
			c.logger.Debug().Err(err).Str("data", ev.Data).Msg("Skipping undecodable stream event")
			continue
		}

		if handler != nil {
			if err := handler(event); err != nil {
				return reply, err
			}
		}

		switch event.Type {
		case StreamResponse:
			reply = &Response{
				Message: event.Text,
				Text:    event.Text,
				Emotion: event.Emotion,
				Visemes: event.Visemes,
			}
			if event.AudioURL != "" {
				audio := event.AudioURL
				reply.AudioURL = &audio
			}
			if event.ToolUsed != "" {
				tool := event.ToolUsed
				reply.ToolUsed = &tool
			}
		case StreamError:
			return reply, fmt.Errorf("stream error: %s", event.Error)
		case StreamDone:
			if reply == nil {
				return nil, fmt.Errorf("stream finished without a response")
			}
			return reply, nil
		}
	}
}
