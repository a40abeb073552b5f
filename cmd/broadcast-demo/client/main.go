// Command client runs a single Broadcast Client: it registers with the
// configured servers, prints every broadcast it receives, and lets the
// operator send one by typing a line and pressing enter.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/mellum-net/broadcast/client"
	"github.com/mellum-net/broadcast/config"
	"github.com/mellum-net/broadcast/internal/observability"
)

func main() {
	servers := flag.String("servers", "", "comma-separated list of server endpoints")
	key := flag.String("key", "", "16, 24, or 32-byte shared key")
	group := flag.Uint("group", 0, "broadcast group (0-255)")
	flag.Parse()

	if *key == "" || *servers == "" {
		fmt.Fprintln(os.Stderr, "client: --key and --servers are required")
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	observer := observability.NewZerologObserver(logger)

	cfg := config.Client{
		Servers:        strings.Split(*servers, ","),
		SharedKey:      []byte(*key),
		BroadcastGroup: uint8(*group),
	}

	c, err := client.New(cfg,
		client.WithObserver(observer),
		client.WithPacketReceived(func(evt client.PacketEvent) {
			fmt.Printf("received from %s: %s\n", evt.SourceAddress, evt.Payload)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		os.Exit(1)
	}

	logger.Info().Msg("broadcast client active, type a line and press enter to broadcast it")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if err := c.Broadcast([]byte(line)); err != nil {
				fmt.Fprintf(os.Stderr, "client: broadcast: %v\n", err)
			}
		case <-sig:
			logger.Info().Msg("shutting down")
			_ = c.Close()
			return
		}
	}
}
