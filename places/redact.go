package places

import (
	"fmt"
	"log/slog"
	"regexp"
)

// Every provider URL carries the API key as a query parameter.
var keyParam = regexp.MustCompile(`([?&]key=)[^&\s"']+`)

func redactKey(s string) string {
	return keyParam.ReplaceAllString(s, "${1}REDACTED")
}

// redactedError hides the key in transport errors, which quote the full URL.
type redactedError struct{ err error }

func (e redactedError) Error() string { return redactKey(e.err.Error()) }
func (e redactedError) Unwrap() error { return e.err }

// redactingLogger adapts slog to retryablehttp.LeveledLogger and scrubs the
// key from every logged value.
type redactingLogger struct{ l *slog.Logger }

func (r redactingLogger) Error(msg string, kv ...interface{}) { r.l.Error(msg, scrub(kv)...) }
func (r redactingLogger) Warn(msg string, kv ...interface{})  { r.l.Warn(msg, scrub(kv)...) }
func (r redactingLogger) Info(msg string, kv ...interface{})  { r.l.Info(msg, scrub(kv)...) }
func (r redactingLogger) Debug(msg string, kv ...interface{}) { r.l.Debug(msg, scrub(kv)...) }

func scrub(kv []interface{}) []interface{} {
	out := make([]interface{}, len(kv))
	for i, v := range kv {
		switch x := v.(type) {
		case string:
			out[i] = redactKey(x)
		case error:
			out[i] = redactKey(x.Error())
		case fmt.Stringer:
			out[i] = redactKey(x.String())
		default:
			out[i] = v
		}
	}
	return out
}
