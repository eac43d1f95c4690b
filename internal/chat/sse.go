package chat

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// sseEvent is one server-sent event.
type sseEvent struct {
	Event string
	Data  string
	ID    string
}

// sseReader splits a text/event-stream body into events.
type sseReader struct {
	reader *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{reader: bufio.NewReader(r)}
}

// next returns the next event with at least one data line. A trailing event
// without the blank terminator line is still returned before io.EOF.
func (s *sseReader) next() (*sseEvent, error) {
	event := &sseEvent{Event: "message"}
	var data []string

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) && len(data) > 0 {
				event.Data = strings.Join(data, "\n")
				return event, nil
			}
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(data) > 0 {
				event.Data = strings.Join(data, "\n")
				return event, nil
			}
			if err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			event.Event = value
		case "data":
			data = append(data, value)
		case "id":
			event.ID = value
		}
	}
}
