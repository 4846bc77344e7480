// Command espscan runs an access-point scan through an ESP8266 module and
// prints a channel survey.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	serial "github.com/daedaluz/goserial"

	"github.com/rjboer/esp8266/at"
	"github.com/rjboer/esp8266/internal/serialio"
	"github.com/rjboer/esp8266/internal/survey"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if err := run(os.Args[1:], os.Stdout, os.Getenv); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("espscan", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	defaultDev := strings.TrimSpace(getenv("ESP_DEVICE"))
	if defaultDev == "" {
		defaultDev = "/dev/ttyUSB0"
	}

	device := fs.String("device", defaultDev, "serial device the module is attached to")
	repeat := fs.Duration("repeat", 0, "rescan interval; 0 scans once")
	if err := fs.Parse(args); err != nil {
		return err
	}

	stream, err := serialio.Open(*device, serial.B9600)
	if err != nil {
		return fmt.Errorf("open serial device: %w", err)
	}
	defer stream.Close()

	drv := at.New(stream, stream)
	if !drv.IsReady() {
		return fmt.Errorf("module on %s is not answering", *device)
	}

	// Scans need station or dual mode; station is the least intrusive.
	if err := drv.SetWifiMode(at.WifiModeStation); err != nil {
		return fmt.Errorf("set station mode: %w", err)
	}

	for {
		if err := scanOnce(drv, out); err != nil {
			return err
		}
		if *repeat <= 0 {
			return nil
		}
		time.Sleep(*repeat)
	}
}

func scanOnce(drv *at.Driver, out io.Writer) error {
	aps, err := drv.AccessPoints()
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	report := survey.Summarize(aps)
	fmt.Fprintf(out, "%d access points\n", report.Total)

	names := make([]string, 0, len(report.Strongest))
	for ssid := range report.Strongest {
		names = append(names, ssid)
	}
	sort.Strings(names)
	for _, ssid := range names {
		fmt.Fprintf(out, "  %s\n", report.Strongest[ssid])
	}

	for _, ch := range report.Channels {
		fmt.Fprintf(out, "channel %2d: %d ap(s), rssi %.1f dBm (σ %.1f)\n",
			ch.Channel, ch.Count, ch.MeanRSSI, ch.StddevRSSI)
	}
	fmt.Fprintf(out, "least crowded channel: %d\n", survey.RecommendChannel(aps))
	return nil
}
