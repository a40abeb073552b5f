// Command server runs a single Broadcast Server node, suitable for
// exercising a small local cluster by running this binary several times
// against different --bind flags.
package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mellum-net/broadcast/config"
	"github.com/mellum-net/broadcast/internal/observability"
	"github.com/mellum-net/broadcast/server"
)

func main() {
	bind := flag.String("bind", "0.0.0.0:7530", "UDP address to bind")
	peers := flag.String("peers", "", "comma-separated list of every server in the cluster, including this one")
	key := flag.String("key", "", "16, 24, or 32-byte shared key")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics at http://<addr>/metrics")
	flag.Parse()

	if *key == "" {
		fmt.Fprintln(os.Stderr, "server: --key is required")
		os.Exit(1)
	}
	if *peers == "" {
		fmt.Fprintln(os.Stderr, "server: --peers is required (must include this server's own --bind)")
		os.Exit(1)
	}

	bindAddr, err := net.ResolveUDPAddr("udp4", *bind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: resolving --bind: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	observer := observability.Observer(observability.NewZerologObserver(logger))

	if *metricsAddr != "" {
		registry := prometheus.NewRegistry()
		promObserver := observability.NewPrometheusObserver(registry)
		observer = observability.Multi{observer, promObserver}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn().Err(err).Msg("metrics listener exited")
			}
		}()
		logger.Info().Str("metrics_addr", *metricsAddr).Msg("serving prometheus metrics")
	}

	cfg := config.Server{
		NetworkBinding: bindAddr,
		SharedKey:      []byte(*key),
		Servers:        strings.Split(*peers, ","),
	}

	s, err := server.New(cfg, server.WithObserver(observer))
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}

	logger.Info().Str("bind", bindAddr.String()).Msg("broadcast server active")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	if err := s.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "server: close: %v\n", err)
		os.Exit(1)
	}
}
