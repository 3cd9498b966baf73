package stream

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// WriteSSE writes one event in Server-Sent Events framing and flushes when
// the writer supports it.
func WriteSSE(w io.Writer, ev Event) error {
	data, err := ev.Data()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// SSEDecoder reads an SSE byte stream back into typed events.
type SSEDecoder struct {
	scanner *bufio.Scanner
}

// NewSSEDecoder wraps r. Buffer capacity allows for long interpretation
// data lines.
func NewSSEDecoder(r io.Reader) *SSEDecoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &SSEDecoder{scanner: sc}
}

// Next returns the next event, or io.EOF when the stream ends cleanly.
func (d *SSEDecoder) Next() (Event, error) {
	var kind Kind
	var data strings.Builder
	sawField := false

	for d.scanner.Scan() {
		line := d.scanner.Text()
		switch {
		case line == "":
			if sawField {
				return ParseEvent(kind, []byte(data.String()))
			}
		case strings.HasPrefix(line, "event:"):
			kind = Kind(strings.TrimSpace(strings.TrimPrefix(line, "event:")))
			sawField = true
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			sawField = true
		case strings.HasPrefix(line, ":"):
			// comment line, skip
		}
	}
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	if sawField {
		return ParseEvent(kind, []byte(data.String()))
	}
	return Event{}, io.EOF
}

// DecodeAll drains the stream into a slice. Intended for tests and the
// terminal client.
func DecodeAll(r io.Reader) ([]Event, error) {
	dec := NewSSEDecoder(r)
	var events []Event
	for {
		ev, err := dec.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}
