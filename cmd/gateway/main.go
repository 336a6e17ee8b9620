/*
 * MIT License
 *
 * Copyright (c) 2024 rust-gateway contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Command gateway is the process bootstrap: it parses CLI flags, wires the
// six long-lived actors named in spec §2 behind a single
// internal/services.Services, loads and publishes the configuration
// document, serves a Prometheus scrape endpoint, and blocks until a
// shutdown signal or a fatal actor failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/blackish/rust-gateway/internal/bufferacct"
	"github.com/blackish/rust-gateway/internal/clustermgr"
	"github.com/blackish/rust-gateway/internal/configmgr"
	"github.com/blackish/rust-gateway/internal/listenermgr"
	"github.com/blackish/rust-gateway/internal/metrics"
	"github.com/blackish/rust-gateway/internal/services"
)

const (
	flagConfig      = "config"
	flagLogLevel    = "loglevel"
	flagMetricsAddr = "metrics-addr"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the single `gateway` command, binding its flags through
// viper so GATEWAY_CONFIG / GATEWAY_LOGLEVEL / GATEWAY_METRICS_ADDR work as
// environment-variable equivalents, following the cobra+viper
// BindPFlag wiring nabbar-golib's component tooling uses.
func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:          "gateway",
		Short:        "L7 HTTP/1.x reverse proxy and load balancer",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			if v.GetString(flagConfig) == "" {
				return fmt.Errorf("required flag %q (or GATEWAY_CONFIG) not set", flagConfig)
			}
			return run(v)
		},
	}

	cmd.Flags().StringP(flagConfig, "c", "", "path to the gateway configuration document")
	cmd.Flags().StringP(flagLogLevel, "l", "info", "log level: error|warn|info|debug")
	cmd.Flags().String(flagMetricsAddr, ":9090", "address to serve the Prometheus /metrics endpoint on")

	for _, name := range []string{flagConfig, flagLogLevel, flagMetricsAddr} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	v.SetEnvPrefix("gateway")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

// run builds every actor, publishes the configuration document, and blocks
// until SIGINT/SIGTERM (returns nil, process exits 0) or a fatal error from
// any supervised goroutine (returns the error, process exits non-zero) —
// config load failure included, since configmgr.Manager.Start runs before
// the signal wait begins.
func run(v *viper.Viper) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(v.GetString(flagLogLevel))
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	log.SetLevel(level)

	registry := prometheus.NewRegistry()

	bufferAcct := bufferacct.New(log)
	metricAgg := metrics.New(log, registry)

	svc := services.New(log, registry, nil, nil, bufferAcct.Inbox(), metricAgg.Inbox(), nil)

	listenerMgr := listenermgr.New(log, svc)
	clusterMgr := clustermgr.New(log, svc)
	cfgMgr := configmgr.New(log, svc)

	svc.ListenerManager = listenerMgr.Inbox()
	svc.ClusterManager = clusterMgr.Inbox()
	svc.ConfigRequests = cfgMgr.Inbox()

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { bufferAcct.Run(); return nil })
	g.Go(func() error { metricAgg.Run(); return nil })
	g.Go(func() error { listenerMgr.Run(); return nil })
	g.Go(func() error { clusterMgr.Run(); return nil })
	g.Go(func() error { cfgMgr.Run(); return nil })

	if err := cfgMgr.Start(v.GetString(flagConfig)); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	metricsSrv := &http.Server{
		Addr:    v.GetString(flagMetricsAddr),
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
		_ = metricsSrv.Shutdown(context.Background())
		return nil
	case <-ctx.Done():
		_ = metricsSrv.Shutdown(context.Background())
		return g.Wait()
	}
}
