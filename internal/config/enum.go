package config

import (
	"fmt"
	"slices"
	"strings"
)

// enumNormalizer maps loosely formatted config strings onto typed enum values.
type enumNormalizer[T ~string] struct {
	values       map[string]T
	defaultValue T
}

func newEnumNormalizer[T ~string](defaultValue T, values ...T) enumNormalizer[T] {
	m := make(map[string]T, len(values))
	for _, v := range values {
		m[string(v)] = v
	}
	return enumNormalizer[T]{values: m, defaultValue: defaultValue}
}

// normalize returns the default for empty input and an error for unknown values.
func (n enumNormalizer[T]) normalize(raw T) (T, error) {
	cleaned := strings.ToLower(strings.TrimSpace(string(raw)))
	if cleaned == "" {
		return n.defaultValue, nil
	}
	if v, ok := n.values[cleaned]; ok {
		return v, nil
	}
	keys := make([]string, 0, len(n.values))
	for k := range n.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return n.defaultValue, fmt.Errorf("invalid value %q, valid options: %v", raw, keys)
}

var (
	concurrencyNormalizer = newEnumNormalizer(ConcurrencyReject, ConcurrencyReject, ConcurrencyQueue)
	backendNormalizer     = newEnumNormalizer(RunLogMemory, RunLogMemory, RunLogSQLite)
	authTypeNormalizer    = newEnumNormalizer(AuthTypeNone, AuthTypeNone, AuthTypeSSH, AuthTypeToken, AuthTypeBasic)
	logLevelNormalizer    = newEnumNormalizer(LogLevelInfo, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError)
	logFormatNormalizer   = newEnumNormalizer(LogFormatText, LogFormatText, LogFormatJSON)
)
