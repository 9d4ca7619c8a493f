package common

import (
	"os"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"github.com/yuzubot/yuzu/common/config"
	"github.com/yuzubot/yuzu/common/store"
)

const VERSION = "1.3.0"

var (
	BotSession *discordgo.Session
	BotUser    *discordgo.User
	Store      *store.DB

	Started = time.Now()

	// Set by tests to relax some checks
	Testing = os.Getenv("YUZU_TESTING") != ""

	ConfBotToken    = config.RegisterOption("yuzu.token", "Discord bot token", "")
	ConfDefaultPfx  = config.RegisterOption("yuzu.prefix", "Default command prefix", "-")
	ConfOwner       = config.RegisterOption("yuzu.owner", "User ID of the bot owner", "")
	ConfDBPath      = config.RegisterOption("yuzu.db.path", "Path to the buntdb state file", "yuzu.db")
	ConfLogFile     = config.RegisterOption("yuzu.log.file", "Also log to this file, rotated by size", "")
	ConfLogLevel    = config.RegisterOption("yuzu.log.level", "Log level (debug, info, warn, error)", "info")
	ConfSentryDSN   = config.RegisterOption("yuzu.sentry.dsn", "Sentry DSN for the error reporting log hook", "")
	ConfRedisAddr   = config.RegisterOption("yuzu.redis", "Optional redis address for shared cooldowns", "")
	ConfShrinkCron  = config.RegisterOption("yuzu.db.shrink_schedule", "Cron spec for compacting the state file", "@every 6h")
	ConfCmdTimeout  = config.RegisterOption("yuzu.commands.timeout", "Max run time of a single command", time.Minute*3)
	ConfHTTPAddress = config.RegisterOption("yuzu.http.addr", "Listen address for the health and metrics server", "localhost:5100")
)

var logger = GetFixedPrefixLogger("common")

// LoadConfig adds the default sources and loads every option.
// The environment is added last so it overrides the .env file.
func LoadConfig(dotenvPath string) error {
	if dotenvPath != "" {
		dotenv, err := config.NewDotEnvSource(dotenvPath)
		if err != nil {
			return errors.WithMessage(err, "dotenv")
		}
		config.AddSource(dotenv)
	}

	config.AddSource(&config.EnvSource{})
	config.Load()
	return nil
}

// Init sets up logging, opens the state store and creates the discord session
func Init() error {
	SetupLogging(ConfLogLevel.GetString(), ConfLogFile.GetString())

	if ConfBotToken.GetString() == "" {
		return errors.New("no bot token, set YUZU_TOKEN")
	}

	db, err := store.Open(ConfDBPath.GetString())
	if err != nil {
		return err
	}
	Store = db

	BotSession, err = discordgo.New("Bot " + ConfBotToken.GetString())
	if err != nil {
		return errors.WithMessage(err, "discordgo.New")
	}
	BotSession.Client.Transport = &LoggingTransport{Inner: BotSession.Client.Transport}
	BotSession.StateEnabled = true
	BotSession.State.TrackMembers = true
	BotSession.State.TrackRoles = true
	BotSession.State.TrackChannels = true

	logger.WithField("db", ConfDBPath.GetString()).Info("Initialized core")
	return nil
}

// IsOwner returns true for the configured bot owner
func IsOwner(userID string) bool {
	return userID != "" && userID == ConfOwner.GetString()
}

// InitTestStore gives packages a fresh in memory store for their tests, options keep their defaults
func InitTestStore() (*store.DB, error) {
	config.Load()

	db, err := store.Open(":memory:")
	if err != nil {
		return nil, err
	}
	Store = db
	logrus.SetLevel(logrus.WarnLevel)
	return db, nil
}
