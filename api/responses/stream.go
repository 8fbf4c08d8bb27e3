package responses

import (
	"encoding/json"
	"fmt"
	"net/http"

	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
)

// EventStream writes server-sent events to a flushing response writer.
type EventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// OpenEventStream writes the event-stream headers. It fails when the writer
// cannot flush.
func OpenEventStream(w http.ResponseWriter) (*EventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &EventStream{w: w, flusher: flusher}, nil
}

// Send encodes data as JSON under the named event.
func (s *EventStream) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Ping writes a comment line so idle proxies keep the connection open.
func (s *EventStream) Ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
