package main

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go4.org/must"
	"golang.org/x/sys/unix"

	"github.com/usnistgov/tofino-tm/core/logging"
	"github.com/usnistgov/tofino-tm/tm/tmscript"
)

var logger = logging.New("TmSim")

// newMetricsServer creates an HTTP server exposing reg on /metrics.
func newMetricsServer(reg *prometheus.Registry) *http.Server {
	var mux http.ServeMux
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Add("Content-Type", "text/plain")
		w.Write([]byte("User-Agent: *\nDisallow: /\n"))
	})
	return &http.Server{Handler: &mux}
}

func systemdNotify() {
	daemon.SdNotify(false, daemon.SdNotifyReady)

	d, e := daemon.SdWatchdogEnabled(false)
	if d == 0 || e != nil {
		logger.Debug("systemd watchdog not configured", zap.Error(e))
		return
	}

	d /= 2
	logger.Debug("systemd watchdog enabled", zap.Duration("duration", d))
	for range time.Tick(d) {
		daemon.SdNotify(false, daemon.SdNotifyWatchdog)
	}
}

func init() {
	var listen string
	defineCommand(&cli.Command{
		Name:      "serve",
		Usage:     "Run scripts and serve Prometheus metrics over HTTP",
		ArgsUsage: "[FILE...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "listen",
				Value:       "127.0.0.1:9344",
				Usage:       "HTTP listen `address`",
				Destination: &listen,
			},
		},
		Action: func(c *cli.Context) error {
			dev, _, e := newDevice()
			if e != nil {
				return e
			}
			defer must.Close(dev)

			if e := runScripts(tmscript.New(dev, os.Stdout), c.Args().Slice()); e != nil {
				return e
			}

			ln, e := net.Listen("tcp", listen)
			if e != nil {
				return e
			}
			srv := newMetricsServer(newRegistry(dev))

			go func() {
				sig := make(chan os.Signal, 1)
				signal.Notify(sig, unix.SIGINT, unix.SIGTERM)
				s := <-sig
				logger.Info("shutdown requested by signal", zap.Stringer("signal", s))
				daemon.SdNotify(false, daemon.SdNotifyStopping)
				srv.Close()
			}()
			go systemdNotify()

			logger.Info("metrics server starting", zap.Stringer("listen", ln.Addr()), dev.ID().ZapField("dev"))
			if e := srv.Serve(ln); e != http.ErrServerClosed {
				return e
			}
			return nil
		},
	})
}
