// Package run wires the process together: flags, logging, config, plugins, the bot and the background workers
package run

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/backgroundworkers"
	"github.com/yuzubot/yuzu/common/config"
	"github.com/yuzubot/yuzu/common/sentryhook"
)

var flags struct {
	dryRun  bool
	version bool

	logTimestamps bool
	syslog        bool
	syslogAppName string

	envFile string

	genCmdDocs    bool
	genConfigDocs bool
	printConfig   bool
}

func init() {
	flag.BoolVar(&flags.dryRun, "dry", false, "Initialize all plugins but don't connect or start anything")
	flag.BoolVar(&flags.version, "version", false, "Print the version and exit")

	flag.BoolVar(&flags.logTimestamps, "ts", false, "Include timestamps in the log")
	flag.BoolVar(&flags.syslog, "syslog", false, "Also log to syslog (linux only)")
	flag.StringVar(&flags.syslogAppName, "logappname", "yuzu", "Application name used for syslog")

	flag.StringVar(&flags.envFile, "env", ".env", "Dotenv file to load config from if it exists, the environment takes precedence")

	flag.BoolVar(&flags.genCmdDocs, "gencmddocs", false, "Print markdown docs of all commands and exit")
	flag.BoolVar(&flags.genConfigDocs, "genconfigdocs", false, "Print markdown docs of all config options and exit")
	flag.BoolVar(&flags.printConfig, "config", false, "Print the config options and where their values came from, then exit")
}

// Init parses flags, sets up logging, loads the config and initializes the core.
// Plugins have to be registered between Init and Run.
func Init() {
	if !flag.Parsed() {
		flag.Parse()
	}

	if flags.version {
		fmt.Println(common.VERSION)
		os.Exit(0)
	}

	setupLogging()

	if err := common.LoadConfig(flags.envFile); err != nil {
		log.WithError(err).Fatal("Failed loading config")
	}

	switch {
	case flags.printConfig:
		for _, line := range config.Singleton.Describe() {
			fmt.Println(line)
		}
		os.Exit(0)
	case flags.genConfigDocs:
		GenConfigDocs()
		os.Exit(0)
	}

	log.Infof("Starting Yuzu %s", common.VERSION)

	if dsn := common.ConfSentryDSN.GetString(); dsn != "" {
		addSentryHook(dsn)
	}

	if err := common.Init(); err != nil {
		log.WithError(err).Fatal("Failed initializing")
	}
}

func setupLogging() {
	common.AddLogHook(common.ContextHook{})

	log.SetFormatter(&log.TextFormatter{
		DisableTimestamp: !flags.logTimestamps,
		FullTimestamp:    flags.logTimestamps,
		SortingFunc:      sortLogFields,
	})

	if flags.syslog {
		AddSyslogHooks()
	}
}

func addSentryHook(dsn string) {
	hook, err := sentryhook.Init(dsn, common.VERSION)
	if err != nil {
		log.WithError(err).Error("Failed adding sentry hook")
		return
	}

	common.AddLogHook(hook)
	log.Info("Added sentry hook")
}

// Run starts the bot and the background workers, then blocks until SIGINT or SIGTERM
func Run() {
	switch {
	case flags.genCmdDocs:
		commands.InitCommands()
		GenCommandsDocs()
		return
	case flags.dryRun:
		log.Info("Dry run, exiting")
		return
	}

	if err := bot.Run(); err != nil {
		log.WithError(err).Fatal("Failed starting the bot")
	}

	scheduleStoreShrink()
	backgroundworkers.RunWorkers()

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	log.WithField("signal", (<-sig).String()).Info("Shutting down")

	shutdown()
	os.Exit(0)
}

func scheduleStoreShrink() {
	spec := common.ConfShrinkCron.GetString()
	_, err := backgroundworkers.Cron.AddFunc(spec, func() {
		if err := common.Store.Shrink(); err != nil {
			log.WithError(err).Error("Failed shrinking the state file")
		}
	})
	if err != nil {
		log.WithError(err).WithField("cron", spec).Error("Failed scheduling state file shrinks")
	}
}

// shutdown stops the bot and the workers in parallel, then closes the store once nothing can write to it
func shutdown() {
	var wg sync.WaitGroup

	wg.Add(1)
	go bot.Stop(&wg)
	backgroundworkers.StopWorkers(&wg)

	log.Info("Waiting for plugins and workers to stop")
	wg.Wait()

	if err := common.Store.Close(); err != nil {
		log.WithError(err).Error("Failed closing the state file")
	}

	sentryhook.Flush()
	log.Info("Bye")
}

// Fields with a rank come first in rank order, the rest alphabetically
var logFieldRank = map[string]int{
	"time":  0,
	"level": 1,
	"p":     2,
	"msg":   3,
	"stck":  4,
}

func sortLogFields(fields []string) {
	sort.Slice(fields, func(i, j int) bool {
		ri, iRanked := logFieldRank[fields[i]]
		rj, jRanked := logFieldRank[fields[j]]

		switch {
		case iRanked && jRanked:
			return ri < rj
		case iRanked != jRanked:
			return iRanked
		}
		return fields[i] < fields[j]
	})
}
