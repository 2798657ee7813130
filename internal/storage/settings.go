package storage

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Settings keys.
const (
	KeyUpstreamURL      = "upstream_url"
	KeyUpstreamAccess   = "upstream_access"
	KeyUpstreamSecret   = "upstream_secret"
	KeyPollingFrequency = "polling_frequency"
	KeyNotification     = "notification"
	KeyLastSyncTime     = "upstream_last_sync_time"
	KeyProxy            = "proxy"
)

// DefaultPollingFrequency applies when polling_frequency is absent or invalid.
const DefaultPollingFrequency = 300 * time.Second

var knownKeys = []string{
	KeyUpstreamURL,
	KeyUpstreamAccess,
	KeyUpstreamSecret,
	KeyPollingFrequency,
	KeyNotification,
	KeyLastSyncTime,
	KeyProxy,
}

// Defaults are the values reported for keys that were never written.
var Defaults = map[string]string{
	KeyPollingFrequency: "300",
	KeyNotification:     "true",
}

// KnownKeys lists every settings key in a stable order.
func KnownKeys() []string {
	return slices.Clone(knownKeys)
}

// ValidateSetting rejects unknown keys and values the readers below could not use.
func ValidateSetting(key, value string) error {
	if !slices.Contains(knownKeys, key) {
		return fmt.Errorf("unknown setting %q", key)
	}
	switch key {
	case KeyPollingFrequency:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive number of seconds, got %q", key, value)
		}
	case KeyNotification:
		if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("%s must be true or false, got %q", key, value)
		}
	case KeyLastSyncTime:
		if _, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("%s must be RFC3339, got %q", key, value)
		}
	}
	return nil
}

// GetOrDefault returns the stored value, the default for the key, or "".
func GetOrDefault(s Settings, key string) (string, error) {
	v, ok, err := s.Get(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return Defaults[key], nil
	}
	return v, nil
}

// Upstream holds the upstream connection settings. URL is empty in local mode.
type Upstream struct {
	URL       string
	AccessKey string
	SecretKey string
}

func ReadUpstream(s Settings) (Upstream, error) {
	var u Upstream
	for key, dst := range map[string]*string{
		KeyUpstreamURL:    &u.URL,
		KeyUpstreamAccess: &u.AccessKey,
		KeyUpstreamSecret: &u.SecretKey,
	} {
		v, _, err := s.Get(key)
		if err != nil {
			return Upstream{}, fmt.Errorf("read %s: %w", key, err)
		}
		*dst = strings.TrimSpace(v)
	}
	return u, nil
}

// PollingInterval falls back to DefaultPollingFrequency for absent, malformed or non-positive values.
func PollingInterval(s Settings) (time.Duration, error) {
	v, ok, err := s.Get(KeyPollingFrequency)
	if err != nil || !ok {
		return DefaultPollingFrequency, err
	}
	secs, perr := strconv.Atoi(strings.TrimSpace(v))
	if perr != nil || secs <= 0 {
		return DefaultPollingFrequency, nil
	}
	return time.Duration(secs) * time.Second, nil
}

// NotificationsEnabled defaults to true when the setting is absent or malformed.
func NotificationsEnabled(s Settings) (bool, error) {
	v, ok, err := s.Get(KeyNotification)
	if err != nil || !ok {
		return true, err
	}
	enabled, perr := strconv.ParseBool(strings.TrimSpace(v))
	if perr != nil {
		return true, nil
	}
	return enabled, nil
}

// LastSyncTime reports false when the watermark is absent or unparseable.
func LastSyncTime(s Settings) (time.Time, bool, error) {
	v, ok, err := s.Get(KeyLastSyncTime)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, perr := time.Parse(time.RFC3339, strings.TrimSpace(v))
	if perr != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// SetLastSyncTime keeps sub-second precision so an item at the watermark is not re-reported.
func SetLastSyncTime(s Settings, t time.Time) error {
	return s.Set(KeyLastSyncTime, t.UTC().Format(time.RFC3339Nano))
}

func Proxy(s Settings) (string, error) {
	v, _, err := s.Get(KeyProxy)
	return strings.TrimSpace(v), err
}
