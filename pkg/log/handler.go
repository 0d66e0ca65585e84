package log

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// appendFields writes alternating key/value pairs onto a zerolog event.
// Error values are rendered with their stack trace; values implementing
// zerolog.LogObjectMarshaler (the typed errors in pkg/errors) are embedded
// as nested objects.
func appendFields(e *zerolog.Event, fields []any) *zerolog.Event {
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			e = appendError(e, ErrorKey, err)
			fields = fields[1:]
		}
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			e = appendError(e, key, v)
		case float64:
			// NaN と Inf は zerolog が文字列として出力する
			e = e.Float64(key, v)
		case int:
			e = e.Int(key, v)
		case string:
			e = e.Str(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	return e
}

func appendError(e *zerolog.Event, key string, err error) *zerolog.Event {
	e = e.AnErr(key, err)
	var obj zerolog.LogObjectMarshaler
	if errors.As(err, &obj) {
		e = e.Object(key+".detail", obj)
	}
	if st := extractStacktrace(err); st != "" {
		e = e.Str(StacktraceKey, st)
	}
	return e
}

// appendContext is the zerolog.Context counterpart of appendFields used by With.
func appendContext(c zerolog.Context, fields []any) zerolog.Context {
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			c = c.AnErr(key, v)
		case float64:
			c = c.Float64(key, v)
		case int:
			c = c.Int(key, v)
		case string:
			c = c.Str(key, v)
		default:
			c = c.Interface(key, v)
		}
	}
	return c
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
