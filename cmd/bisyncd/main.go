/*
The bisyncd command runs a single binary synchronous communications link
as a standalone daemon: it opens the configured serial port, runs the
protocol engine, and (optionally) exposes Prometheus metrics and
publishes lifecycle events to Redis.

Configuration is read from a TOML file; see package config for the
format. Use -verbose to log at debug level.
*/
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sys/unix"

	"github.com/alexeynaumov/rbisync"
	"github.com/alexeynaumov/rbisync/config"
	"github.com/alexeynaumov/rbisync/metrics"
	"github.com/alexeynaumov/rbisync/protocol"
)

func newLogger(verbose bool) log.Logger {
	logger := log.NewLogfmtLogger(os.Stderr)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	if verbose {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}

func run() int {
	cfgPathPtr := flag.String("config", "/etc/bisyncd/bisyncd.toml", "specify configuration file path")
	verbosePtr := flag.Bool("verbose", false, "toggle verbose log output")
	metricsAddrPtr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address, e.g. ':9110'")
	flag.Parse()

	logger := newLogger(*verbosePtr)

	cfg, err := config.LoadFile(*cfgPathPtr)
	if err != nil {
		level.Error(logger).Log("message", "failed to load configuration", "error", err)
		return 1
	}

	link, err := rbisync.Open(log.With(logger, "component", "link"), cfg)
	if err != nil {
		level.Error(logger).Log("message", "failed to open link", "error", err)
		return 1
	}
	defer link.Close()

	link.OnRead(func(payload []byte) {
		level.Debug(logger).Log("message", "received frame", "payload", string(payload))
	})
	link.OnError(func(err *protocol.Error) {
		level.Error(logger).Log("message", "protocol error", "error", err)
	})

	if *metricsAddrPtr != "" {
		collector := metrics.NewCollector("bisyncd", prometheus.Labels{"device": cfg.Serial.Device})
		collector.Attach(link.Engine())
		prometheus.MustRegister(collector)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddrPtr, mux); err != nil {
				level.Error(logger).Log("message", "metrics server exited", "error", err)
			}
		}()
		level.Info(logger).Log("message", "serving metrics", "addr", *metricsAddrPtr)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGINT, unix.SIGTERM)

	level.Info(logger).Log("message", "bisyncd running", "device", cfg.Serial.Device)
	<-sigs
	level.Info(logger).Log("message", "received signal, shutting down")
	return 0
}

func main() {
	os.Exit(run())
}
