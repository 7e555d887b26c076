package config

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// Field names whose values never reach the log output in the clear.
var sensitiveFields = []string{"sessdata", "bili_jct", "buvid3", "dedeuserid", "api_key", "apikey", "token", "secret", "password"}

func SetupLogging(cfg Config) {
	log.SetLevel(cfg.LogLevel)

	switch cfg.LogFormat {
	case LogFormatJSON:
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{})
	}

	log.AddHook(RedactHook{})
}

// RedactHook masks the values of sensitive fields.
type RedactHook struct{}

func (RedactHook) Levels() []log.Level {
	return log.AllLevels
}

func (RedactHook) Fire(entry *log.Entry) error {
	for key, value := range entry.Data {
		if !isSensitive(key) {
			continue
		}
		if s, ok := value.(string); ok {
			entry.Data[key] = Mask(s)
		} else {
			entry.Data[key] = "****"
		}
	}
	return nil
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, field := range sensitiveFields {
		if strings.Contains(key, field) {
			return true
		}
	}
	return false
}

// Mask keeps the first and last two characters of long values.
func Mask(value string) string {
	runes := []rune(value)
	if len(runes) <= 4 {
		return "****"
	}
	return string(runes[:2]) + "****" + string(runes[len(runes)-2:])
}
