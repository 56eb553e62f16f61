package web

import (
	"fmt"
	"net/http"

	"threatwatch/pkg/bus"
)

// handleSSE streams ingest events to the browser so the table can refresh
// without polling. Without a bus the connection stays open but silent; the
// database remains the source of truth either way.
func (a *API) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var events chan []byte
	if a.bus != nil {
		events = make(chan []byte, 16)
		sub, err := a.bus.Subscribe(bus.IndicatorsInsertedSubject, func(data []byte) {
			select {
			case events <- data:
			default: // slow client, drop rather than block the bus callback
			}
		})
		if err != nil {
			http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
			return
		}
		defer sub.Close()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if events == nil {
		<-r.Context().Done()
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-events:
			fmt.Fprintf(w, "event: indicators\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
