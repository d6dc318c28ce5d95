package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// writeJSONLine prints one JSON document per line to stdout, the shape the
// surrounding tooling consumes.
func writeJSONLine(v any) error {
	return encodeJSONLine(os.Stdout, v)
}

func encodeJSONLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return withCode(exitOutput, fmt.Errorf("encode summary: %w", err))
	}
	return nil
}
