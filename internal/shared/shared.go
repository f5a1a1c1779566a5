// package shared holds the configuration, errors, logging and storage helpers used by every
// other spotauth package.
package shared

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// Slog exposes a [log.Logger] as a [slog.Logger] for libraries that expect the stdlib front end.
func Slog(l *log.Logger) *slog.Logger {
	return slog.New(l)
}

// GenerateID generates a new v4 [uuid.UUID] as a string. Session and request ids use it.
func GenerateID() string {
	return uuid.New().String()
}

// Fingerprint returns a short, stable digest of a secret so log lines can tell two tokens
// apart without carrying either of them. Empty input yields "".
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}
