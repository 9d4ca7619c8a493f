// Package backgroundworkers runs plugin workers that aren't tied to gateway events,
// and the small http server exposing /health and /metrics.
package backgroundworkers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/yuzubot/yuzu/common"
	"goji.io"
	"goji.io/pat"
)

var (
	RESTServerMuxer *goji.Mux
	restServer      *http.Server

	// Cron is shared by the plugins for periodic maintenance jobs
	Cron = cron.New(cron.WithChain(cron.Recover(cronLogger{})))

	logger = common.GetFixedPrefixLogger("bgworkers")
)

type BackgroundWorkerPlugin interface {
	RunBackgroundWorker()
	StopBackgroundWorker(wg *sync.WaitGroup)
}

// HealthChecker is implemented by plugins that can report a problem on /health
type HealthChecker interface {
	Healthy() error
}

func RunWorkers() {
	RESTServerMuxer = NewMux()

	for _, p := range common.Plugins {
		if bwc, ok := p.(BackgroundWorkerPlugin); ok {
			logger.Info("Running background worker: ", p.PluginInfo().Name)
			go bwc.RunBackgroundWorker()
		}
	}

	Cron.Start()
	go runWebserver(common.ConfHTTPAddress.GetString())
}

func StopWorkers(wg *sync.WaitGroup) {
	logger.Info("Shutting down http server...")
	if restServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		restServer.Shutdown(ctx)
		cancel()
	}

	<-Cron.Stop().Done()

	for _, p := range common.Plugins {
		if bwc, ok := p.(BackgroundWorkerPlugin); ok {
			logger.Info("Stopping background worker: ", p.PluginInfo().Name)
			wg.Add(1)
			go bwc.StopBackgroundWorker(wg)
		}
	}
}

// NewMux builds the health and metrics routes
func NewMux() *goji.Mux {
	mux := goji.NewMux()
	mux.Handle(pat.Get("/metrics"), promhttp.Handler())
	mux.HandleFunc(pat.Get("/health"), handleHealth)
	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, p := range common.Plugins {
		checker, ok := p.(HealthChecker)
		if !ok {
			continue
		}

		if err := checker.Healthy(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(p.PluginInfo().SysName + ": " + err.Error() + "\n"))
			return
		}
	}

	w.Write([]byte("ok\n"))
}

func runWebserver(addr string) {
	logger.Info("Starting bgworker http server on ", addr)

	restServer = &http.Server{
		Handler:           RESTServerMuxer,
		Addr:              addr,
		ReadHeaderTimeout: time.Second * 10,
	}

	err := restServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("Failed starting http server")
	}
}

// cronLogger adapts logrus to cron's logger interface
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.WithField("kv", keysAndValues).Debug(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.WithError(err).WithField("kv", keysAndValues).Error(msg)
}
