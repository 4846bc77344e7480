// Command espprobe checks that an ESP8266 module on a serial line answers,
// and reports its firmware revision and radio mode.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	serial "github.com/daedaluz/goserial"

	"github.com/rjboer/esp8266/at"
	"github.com/rjboer/esp8266/internal/serialio"
)

// dumpSource wraps the serial stream and hex-dumps every byte that crosses
// the wire. Intentionally verbose to aid diagnostics against flaky modules
// and marginal cabling.
type dumpSource struct {
	*serialio.Stream
}

func (d *dumpSource) ReadByte() (byte, error) {
	b, err := d.Stream.ReadByte()
	if err == nil {
		log.Printf("[wire][in ]\n%s", hex.Dump([]byte{b}))
	}
	return b, err
}

func (d *dumpSource) Write(p []byte) (int, error) {
	n, err := d.Stream.Write(p)
	if n > 0 {
		log.Printf("[wire][out] %d bytes\n%s", n, hex.Dump(p[:n]))
	}
	return n, err
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if err := run(os.Args[1:], os.Stdout, os.Getenv); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("espprobe", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	defaultDev := strings.TrimSpace(getenv("ESP_DEVICE"))
	if defaultDev == "" {
		defaultDev = "/dev/ttyUSB0"
	}

	device := fs.String("device", defaultDev, "serial device the module is attached to")
	dump := fs.Bool("dump", false, "hex-dump all wire traffic")
	if err := fs.Parse(args); err != nil {
		return err
	}

	stream, err := serialio.Open(*device, serial.B9600)
	if err != nil {
		return fmt.Errorf("open serial device: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Printf("failed to close serial device: %v", err)
		}
	}()

	var drv *at.Driver
	if *dump {
		ds := &dumpSource{Stream: stream}
		drv = at.New(ds, ds)
	} else {
		drv = at.New(stream, stream)
	}

	if !drv.IsReady() {
		return fmt.Errorf("module on %s is not answering", *device)
	}
	fmt.Fprintf(out, "module ready on %s\n", *device)

	version, err := drv.FirmwareVersion()
	if err != nil {
		return fmt.Errorf("query firmware version: %w", err)
	}
	fmt.Fprintf(out, "firmware: %s\n", version)

	mode, err := drv.WifiMode()
	if err != nil {
		return fmt.Errorf("query wifi mode: %w", err)
	}
	fmt.Fprintf(out, "wifi mode: %s\n", mode)

	ip, err := drv.IP()
	if err != nil {
		return fmt.Errorf("query ip: %w", err)
	}
	fmt.Fprintf(out, "ip: %s\n", ip)
	return nil
}
