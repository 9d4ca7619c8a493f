package run

import (
	"log/syslog"

	"github.com/sirupsen/logrus"
	lsyslog "github.com/sirupsen/logrus/hooks/syslog"
	"github.com/yuzubot/yuzu/common"
)

func AddSyslogHooks() {
	logrus.Println("Adding syslog hook")

	hook, err := lsyslog.NewSyslogHook("", "", syslog.LOG_INFO|syslog.LOG_DAEMON, flags.syslogAppName)
	if err != nil {
		logrus.WithError(err).Println("failed initializing syslog hook")
		return
	}

	common.AddLogHook(hook)
}
