package stoparrivals

import (
	"strconv"
	"strings"
)

// QueryError reports a malformed request parameter.
type QueryError struct{ Msg string }

func (e *QueryError) Error() string { return e.Msg }

// parseBoolParam accepts the strconv.ParseBool spellings plus "yes"/"no".
// An empty value yields def.
func parseBoolParam(name, s string, def bool) (bool, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "":
		return def, nil
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def, &QueryError{Msg: "Parameter " + name + " must be a boolean."}
	}
	return v, nil
}

// normalizeLabel trims a line label taken from the path.
func normalizeLabel(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &QueryError{Msg: "Line label must not be empty."}
	}
	return s, nil
}
