package usecase

import (
	"fmt"
	"io"

	"loganalyzer/internal/domain"
)

// RenderEvent formats an event the way it appears on the console.
func RenderEvent(ev domain.Event) string {
	switch ev.Kind {
	case domain.EventUsage:
		return "\n" + ev.Message
	case domain.EventResponse:
		return "\n=== Response ===\n\n" + ev.Message
	default:
		return ev.Message
	}
}

// ConsoleSink writes each event to w, one rendered block per event.
func ConsoleSink(w io.Writer) func(domain.Event) {
	return func(ev domain.Event) {
		fmt.Fprintln(w, RenderEvent(ev))
	}
}
