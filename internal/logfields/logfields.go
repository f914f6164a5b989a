package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID         = "run_id"
	KeyCorrelationID = "correlation_id"
	KeyStage         = "stage"
	KeyDurationMS    = "duration_ms"
	KeyURL           = "url"
	KeyPath          = "path"
	KeyExitCode      = "exit_code"
	KeyCommand       = "command"
	KeyMethod        = "method"
	KeyStatus        = "status"
	KeyRemoteAddr    = "remote_addr"
	KeyUserAgent     = "user_agent"
	KeyTrigger       = "trigger"
	KeyError         = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id uint64) slog.Attr         { return slog.Uint64(KeyRunID, id) }
func CorrelationID(id string) slog.Attr { return slog.String(KeyCorrelationID, id) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func URL(u string) slog.Attr            { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func ExitCode(code int) slog.Attr       { return slog.Int(KeyExitCode, code) }
func Command(argv []string) slog.Attr   { return slog.Any(KeyCommand, argv) }
func Method(m string) slog.Attr         { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr         { return slog.Int(KeyStatus, code) }
func RemoteAddr(addr string) slog.Attr  { return slog.String(KeyRemoteAddr, addr) }
func UserAgent(ua string) slog.Attr     { return slog.String(KeyUserAgent, ua) }
func Trigger(source string) slog.Attr   { return slog.String(KeyTrigger, source) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
