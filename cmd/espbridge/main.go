// Command espbridge joins an ESP8266 module to a configured access point,
// opens a TCP transport to a peer, and bridges stdin/stdout onto it. A
// telemetry endpoint exposes link diagnostics while the bridge runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	serial "github.com/daedaluz/goserial"

	"github.com/rjboer/esp8266/at"
	"github.com/rjboer/esp8266/internal/config"
	"github.com/rjboer/esp8266/internal/link"
	"github.com/rjboer/esp8266/internal/logging"
	"github.com/rjboer/esp8266/internal/serialio"
	"github.com/rjboer/esp8266/internal/telemetry"
)

// defaultRecvPoll is how long each bridge iteration waits for an inbound
// frame before checking for outbound data again, unless the configuration
// overrides it.
const defaultRecvPoll = 500 * time.Millisecond

// recvBufSize covers the largest frame the firmware delivers (one TCP
// segment) plus the trailing byte the driver consumes per frame.
const recvBufSize = 1461

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("espbridge", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfgPath := fs.String("config", "espbridge.yaml", "path to the YAML configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return err
	}
	logger := logging.New(level, format, os.Stderr)
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream, err := serialio.Open(cfg.Device, serial.B9600)
	if err != nil {
		return fmt.Errorf("open serial device: %w", err)
	}
	defer stream.Close()

	drv := at.New(stream, stream)
	drv.SetLogger(logger)
	if cfg.Timeouts.ShortMS > 0 {
		drv.ShortTimeout = time.Duration(cfg.Timeouts.ShortMS) * time.Millisecond
	}
	if cfg.Timeouts.LongMS > 0 {
		drv.LongTimeout = time.Duration(cfg.Timeouts.LongMS) * time.Millisecond
	}
	recvPoll := defaultRecvPoll
	if cfg.Timeouts.ReadPollMS > 0 {
		recvPoll = time.Duration(cfg.Timeouts.ReadPollMS) * time.Millisecond
	}

	mgr := link.New(drv, logger)
	if err := mgr.WaitReady(ctx); err != nil {
		return err
	}
	if _, err := mgr.Join(ctx, cfg.Network.SSID, cfg.Network.Password); err != nil {
		return err
	}
	if err := mgr.DialTCP(cfg.Peer.Host, cfg.Peer.Port); err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Warn("close transport", logging.Field{Key: "err", Value: err})
		}
	}()

	hub := telemetry.NewHub(logger)
	hub.Update(mgr.Status(), drv.Metrics().Snapshot())
	var telemetryErr <-chan error
	if cfg.Telemetry.Listen != "" {
		srv := telemetry.NewServer(cfg.Telemetry.Listen, hub, logger)
		telemetryErr = srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	return bridge(ctx, mgr, hub, in, out, telemetryErr, recvPoll)
}

// bridge pumps stdin out over the transport and inbound frames to stdout.
// The driver is single-owner, so all module traffic stays on this
// goroutine; the stdin reader only feeds a channel.
func bridge(ctx context.Context, mgr *link.Manager, hub *telemetry.Hub, in io.Reader, out io.Writer, telemetryErr <-chan error, recvPoll time.Duration) error {
	drv := mgr.Driver()
	// RecvFrame waits ConnectTimeout for a frame to begin; shrink it to
	// the poll interval so outbound data is not starved for ten seconds
	// at a time on a quiet link.
	drv.ConnectTimeout = recvPoll

	outbound := make(chan []byte, 4)
	go func() {
		defer close(outbound)
		buf := make([]byte, 1024)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case outbound <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	recvBuf := make([]byte, recvBufSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-telemetryErr:
			if err != nil {
				return fmt.Errorf("telemetry server: %w", err)
			}
		case chunk, ok := <-outbound:
			if !ok {
				return nil
			}
			if err := mgr.SendFrame(chunk); err != nil {
				hub.RecordError(err)
				return err
			}
		default:
			n, err := mgr.RecvFrame(recvBuf, recvPoll+time.Second)
			switch {
			case err == nil:
				if n > 1 {
					// Drop the trailing byte the module appends past the
					// advertised payload length.
					if _, werr := out.Write(recvBuf[:n-1]); werr != nil {
						return werr
					}
				}
			case errors.Is(err, at.ErrTimeout):
				// No frame this interval; fall through to the next turn.
			default:
				hub.RecordError(err)
				return err
			}
		}
		hub.Update(mgr.Status(), drv.Metrics().Snapshot())
	}
}
