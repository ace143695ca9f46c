package server

import (
	"encoding/json"
	"fmt"
	"io"
)

// writeEvent writes one server-sent event frame with a JSON data line.
func writeEvent(w io.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
