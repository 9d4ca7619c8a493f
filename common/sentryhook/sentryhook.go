package sentryhook

import (
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// Hook forwards error level log entries to sentry
type Hook struct{}

// Init sets up the sentry client and returns a hook ready for logrus.AddHook
func Init(dsn, release string) (*Hook, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:     dsn,
		Release: release,
	})
	if err != nil {
		return nil, err
	}

	return &Hook{}, nil
}

// Flush waits for queued events to be sent, call it before exiting
func Flush() {
	sentry.Flush(time.Second * 2)
}

func (hook Hook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	}
}

func (hook Hook) Fire(entry *logrus.Entry) error {
	hub := sentry.CurrentHub().Clone()
	if hub == nil {
		return nil
	}

	hub.WithScope(func(s *sentry.Scope) {
		for k, v := range entry.Data {
			strV := fmt.Sprint(v)
			switch k {
			case "p":
				s.SetTag("plugin", strV)
			case "guild", "g":
				s.SetTag("guild_id", strV)
			case "user", "u":
				s.SetUser(sentry.User{ID: strV})
			case "cmd":
				s.SetTag("command", strV)
			case logrus.ErrorKey, "stck":
			default:
				s.SetExtra(k, strV)
			}
		}

		var err error
		if v, ok := entry.Data[logrus.ErrorKey]; ok {
			err, _ = v.(error)
		}

		if err != nil {
			s.SetExtra("message", entry.Message)
			hub.CaptureException(err)
		} else {
			hub.CaptureException(errors.New(entry.Message))
		}
	})

	return nil
}
