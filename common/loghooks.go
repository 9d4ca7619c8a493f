package common

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/natefinch/lumberjack"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

type ContextHook struct{}

func (hook ContextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook ContextHook) Fire(entry *logrus.Entry) error {
	// Skip if already provided
	if _, ok := entry.Data["stck"]; ok {
		return nil
	}

	pc := make([]uintptr, 3)
	cnt := runtime.Callers(6, pc)

	for i := 0; i < cnt; i++ {
		fu := runtime.FuncForPC(pc[i] - 1)
		name := fu.Name()
		if !strings.Contains(name, "github.com/sirupsen/logrus") {
			file, line := fu.FileLine(pc[i] - 1)

			entry.Data["stck"] = filepath.Base(name) + ":" + filepath.Base(file) + ":" + strconv.Itoa(line)
			break
		}
	}
	return nil
}

func AddLogHook(hook logrus.Hook) {
	logrus.AddHook(hook)
}

// SetupLogging sets the level and, if file is set, duplicates output into a size rotated log file
func SetupLogging(level, file string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	if file == "" {
		return
	}

	rotated := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, rotated))
}

// DiscordLogger routes discordgo's internal logging through logrus
func DiscordLogger(msgL, caller int, format string, a ...interface{}) {
	entry := logrus.WithField("p", "discordgo")
	msg := fmt.Sprintf(format, a...)

	switch msgL {
	case discordgo.LogError:
		entry.Error(msg)
	case discordgo.LogWarning:
		entry.Warn(msg)
	case discordgo.LogInformational:
		entry.Info(msg)
	default:
		entry.Debug(msg)
	}
}

var (
	metricsDiscordResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yuzu_discord_http_responses_total",
		Help: "Discord API responses by status class",
	}, []string{"class"})

	metricsDiscordRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yuzu_discord_http_requests_total",
		Help: "Discord API requests by method",
	}, []string{"method"})
)

// LoggingTransport counts discord api requests and response classes
type LoggingTransport struct {
	Inner http.RoundTripper
}

func (t *LoggingTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	inner := t.Inner
	if inner == nil {
		inner = http.DefaultTransport
	}

	code := 0
	resp, err := inner.RoundTrip(request)
	if resp != nil {
		code = resp.StatusCode
	}

	metricsDiscordResponses.With(prometheus.Labels{"class": strconv.Itoa(code/100) + "xx"}).Inc()
	metricsDiscordRequests.With(prometheus.Labels{"method": request.Method}).Inc()

	return resp, err
}
