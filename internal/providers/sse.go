package providers

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// sseEvent is one parsed frame of an HTTP text/event-stream response.
type sseEvent struct {
	Event string
	Data  string
}

// parseSSE reads an SSE body and invokes handler for each frame. Frames are
// terminated by a blank line; multi-line "data:" fields are joined by "\n".
// A data body literally equal to "[DONE]" or empty terminates the stream
// without invoking handler. Adapted from the teacher's standalone
// ParseSSEStream helper in the Anthropic provider.
func parseSSE(r io.Reader, handler func(sseEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var eventType string
	var dataLines []string

	flush := func() error {
		if len(dataLines) == 0 {
			eventType = ""
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		trimmed := strings.TrimSpace(data)
		if trimmed == "" || trimmed == "[DONE]" {
			eventType = ""
			return errStreamEnded
		}
		ev := sseEvent{Event: eventType, Data: data}
		eventType = ""
		return handler(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				if err == errStreamEnded {
					return nil
				}
				return err
			}
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, ":"):
			// comment/heartbeat line, ignore
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("providers: read SSE stream: %w", err)
	}
	// final frame with no trailing blank line
	if err := flush(); err != nil && err != errStreamEnded {
		return err
	}
	return nil
}

var errStreamEnded = fmt.Errorf("providers: stream ended")
