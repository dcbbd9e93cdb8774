// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

// Command ntlscat moves bytes over TLS connections driven by a single
// epoll poller, using the ntls poll-based session layer.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code.hybscloud.com/ntls"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

// globals are the persistent flags shared by every command.
type globals struct {
	configPath  string
	logLevel    string
	metricsAddr string
	plain       bool
}

func main() {
	var g globals
	rootCmd := &cobra.Command{
		Use:           "ntlscat",
		Short:         "Poll-driven TLS echo server and client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&g.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().BoolVar(&g.plain, "plain", false, "skip TLS and move plaintext")

	rootCmd.AddCommand(
		serveCmd(&g),
		connectCmd(&g),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ntlscat: %s\n", err)
		os.Exit(1)
	}
}

// env is what every command needs once flags are parsed.
type env struct {
	log     zerolog.Logger
	config  ntls.Config
	metrics *ntls.Metrics
	poller  *ntls.Poller
}

func (g *globals) setup(ctx context.Context, app string) (*env, error) {
	level, err := zerolog.ParseLevel(g.logLevel)
	if err != nil {
		return nil, err
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	log := zerolog.New(output).Level(level).With().Timestamp().Str("app", app).Logger()

	cfg := ntls.DefaultConfig()
	if g.configPath != "" {
		if cfg, err = ntls.LoadConfig(g.configPath); err != nil {
			return nil, err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := ntls.NewMetrics(reg)
	if g.metricsAddr != "" {
		srv := &http.Server{
			Addr:              g.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
		log.Info().Str("addr", g.metricsAddr).Msg("serving metrics")
	}

	poller, err := ntls.NewPoller()
	if err != nil {
		return nil, err
	}
	go func() {
		if err := poller.Run(ctx); err != nil {
			log.Error().Err(err).Msg("poller")
		}
	}()
	return &env{log: log, config: cfg, metrics: metrics, poller: poller}, nil
}

func (rt *env) options() []ntls.Option {
	return []ntls.Option{ntls.WithLogger(rt.log), ntls.WithMetrics(rt.metrics)}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
