// Meet call client: captures local media, registers with the relay and
// drives one peer-to-peer video call from the terminal.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/adapters/relayclient"
	"github.com/dkeye/Meet/internal/adapters/rtc"
	"github.com/dkeye/Meet/internal/adapters/tui"
	"github.com/dkeye/Meet/internal/app/call"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := flag.String("server", "", "Relay address, overrides SOCKET_SERVER")
	loopback := flag.Bool("loopback", false, "Gather loopback ICE candidates (same-host calls)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(config.Level(cfg.LogLevel))
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *server != "" {
		cfg.SocketServer = *server
	}

	pterm.Info.Printfln("Meet client, relay %s", cfg.SocketServer)

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := relayclient.Dial(dialCtx, cfg.SocketServer)
	dialCancel()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	defer conn.Close()

	peer, err := rtc.NewPeer(conn, rtc.Options{ICEServers: cfg.ICEServers, IncludeLoopback: *loopback})
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	peer.OnData(func(from domain.ConnID, label string, data []byte) {
		pterm.Info.Printfln("data from %s on %q: %s", from, label, data)
	})

	client := call.New(call.Deps{
		Negotiator: peer,
		Devices:    media.SyntheticDevices{},
		Alerter:    tui.NewAlerter(os.Stdout),
	})
	defer client.Close()
	tui.WatchPreview(os.Stdout, client.LocalPreview())
	tui.WatchPreview(os.Stdout, client.RemotePreview())

	// ctx also bounds the capture pumps, so no timeout here
	if err := client.Initialize(ctx); err != nil {
		// already alerted; the client stays up without calling ability
		log.Warn().Err(err).Str("module", "client").Msg("initialize")
	} else {
		pterm.Success.Printfln("your id: %s", client.View().MyPeerID)
	}

	go func() {
		<-conn.Done()
		pterm.Warning.Println("relay connection lost")
		cancel()
	}()

	if err := tui.Run(ctx, os.Stdin, os.Stdout, client); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("command loop")
	}
}
