package formatter

import (
	"encoding/json"
	"io"
)

// WriteJSON serializes v as a single JSON document followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// WriteJSONIndent is WriteJSON with two-space indentation for terminals.
func WriteJSONIndent(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
