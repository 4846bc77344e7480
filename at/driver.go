// Package at drives an ESP8266 module running the AI-Thinker rev-018
// AT-command firmware over a caller-supplied byte stream, typically a serial
// line at 9600 baud. It translates typed operations into the module's
// textual dialect and parses the structured replies back.
//
// A Driver owns its streams for the duration of each call and carries no
// interior locking; callers needing concurrency must serialize externally.
// A failed or timed-out operation may leave unread reply bytes on the
// stream. The driver never repairs that; re-probing with IsReady (or
// restarting the module) is the caller's recovery path.
package at

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rjboer/esp8266/internal/logging"
)

// Default per-operation wall-clock budgets. Short covers quick
// query-response commands; long covers scans, restart and join; connect
// bounds the wait for an inbound +IPD frame.
const (
	DefaultShortTimeout   = 200 * time.Millisecond
	DefaultLongTimeout    = 4 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// Line-length ceilings for the replies the driver reads as whole lines.
const (
	versionLineMax = 30
	modeLineMax    = 20
	ipLineMax      = 20
	scanLineMax    = 100
	lengthFieldMax = 10
)

const (
	tokenOK    = "OK\r\n"
	tokenError = "ERROR\r\n"
	tokenFail  = "FAIL\r\n"
	tokenReady = "ready\r\n"
)

// Driver is the unique owner of one module's control channel.
type Driver struct {
	src Source
	w   *bufio.Writer

	// ShortTimeout and LongTimeout are the default per-operation budgets
	// and may be adjusted by the caller between operations.
	ShortTimeout time.Duration
	LongTimeout  time.Duration

	// ConnectTimeout bounds how long Receive waits for a +IPD frame to
	// begin.
	ConnectTimeout time.Duration

	metrics Metrics
	log     logging.Logger
}

// New wraps an already-open stream pair. It probes the module and, if the
// module answers, disables command echo; every later parse assumes no
// echoed command lines. A silent module is tolerated (it may simply not be
// powered yet), in which case the caller re-probes with IsReady later.
// Dropping the driver does not close the caller's streams.
func New(src Source, sink io.Writer) *Driver {
	d := &Driver{
		src:            src,
		w:              bufio.NewWriter(sink),
		ShortTimeout:   DefaultShortTimeout,
		LongTimeout:    DefaultLongTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		log:            logging.Default(),
	}
	if d.IsReady() {
		_ = d.DisableEcho()
	}
	return d
}

// SetLogger replaces the driver's logger.
func (d *Driver) SetLogger(l logging.Logger) {
	if l != nil {
		d.log = l
	}
}

// Metrics exposes the driver's traffic counters.
func (d *Driver) Metrics() *Metrics {
	return &d.metrics
}

// ---------- Command transport ----------

// sendCommand frames and flushes one command line: "AT\r\n" for the empty
// verb, "AT+<verb>\r\n" otherwise.
func (d *Driver) sendCommand(verb string) error {
	cmd := "AT"
	if verb != "" {
		cmd += "+" + verb
	}
	cmd += "\r\n"
	d.w.WriteString(cmd)
	if err := d.w.Flush(); err != nil {
		d.metrics.CommandsFailed.Add(1)
		return fmt.Errorf("write command: %w", err)
	}
	d.metrics.CommandsSent.Add(1)
	d.metrics.BytesWritten.Add(uint64(len(cmd)))
	d.log.Debug("command sent", logging.Field{Key: "subsystem", Value: "at"}, logging.Field{Key: "verb", Value: verb})
	return nil
}

// sendRaw writes bytes verbatim and flushes. ATE0/ATE1 need this because
// the module rejects the '+' framing on the echo verbs; Send uses it for
// payload bytes.
func (d *Driver) sendRaw(p []byte) error {
	d.w.Write(p)
	if err := d.w.Flush(); err != nil {
		return fmt.Errorf("write raw: %w", err)
	}
	d.metrics.BytesWritten.Add(uint64(len(p)))
	return nil
}

// ---------- Commands ----------

// IsReady sends a bare AT probe. It reports false on every failure mode,
// including timeout, and never returns an error; it doubles as the recovery
// probe after an abandoned reply.
func (d *Driver) IsReady() bool {
	if err := d.sendCommand(""); err != nil {
		return false
	}
	return d.expectEither(tokenOK, tokenError, time.Now().Add(d.ShortTimeout)) == nil
}

// DisableEcho turns command echo off. The driver's reply parsing depends on
// echo staying off; it is asserted at construction and after Restart.
func (d *Driver) DisableEcho() error {
	if err := d.sendRaw([]byte("ATE0\r\n")); err != nil {
		return err
	}
	return d.expectEither(tokenOK, tokenError, time.Now().Add(d.ShortTimeout))
}

// EnableEcho turns command echo back on. Issuing further driver operations
// with echo enabled corrupts their reply parsing; re-disable first.
func (d *Driver) EnableEcho() error {
	if err := d.sendRaw([]byte("ATE1\r\n")); err != nil {
		return err
	}
	return d.expectEither(tokenOK, tokenError, time.Now().Add(d.ShortTimeout))
}

// FirmwareVersion returns the AT firmware revision line reported by GMR.
func (d *Driver) FirmwareVersion() (string, error) {
	if err := d.sendCommand("GMR"); err != nil {
		return "", err
	}
	deadline := time.Now().Add(d.ShortTimeout)
	version, err := d.readLine(versionLineMax, deadline)
	if err != nil {
		return "", err
	}
	if err := d.expectEither(tokenOK, tokenError, deadline); err != nil {
		return "", err
	}
	return version, nil
}

// WifiMode queries the module's current radio role.
func (d *Driver) WifiMode() (WifiMode, error) {
	if err := d.sendCommand("CWMODE?"); err != nil {
		return 0, err
	}
	deadline := time.Now().Add(d.ShortTimeout)
	if err := d.expectToken("+CWMODE:", deadline); err != nil {
		return 0, err
	}
	code, err := d.readInto('\r', 1, deadline)
	if err != nil {
		return 0, err
	}
	if len(code) != 1 {
		return 0, protocolErrorf("empty CWMODE reply")
	}
	mode, err := wifiModeFromCode(code[0])
	if err != nil {
		return 0, err
	}
	if err := d.expectToken(tokenOK, deadline); err != nil {
		return 0, err
	}
	return mode, nil
}

// SetWifiMode switches the module's radio role. The firmware answers
// "no change" instead of OK when the requested mode is already active;
// both are success and look identical to the caller.
func (d *Driver) SetWifiMode(mode WifiMode) error {
	if !mode.valid() {
		return fmt.Errorf("invalid wifi mode %d", int(mode))
	}
	if err := d.sendCommand("CWMODE=" + string(mode.code())); err != nil {
		return err
	}
	deadline := time.Now().Add(d.ShortTimeout)
	line, err := d.readLine(modeLineMax, deadline)
	if err != nil {
		return err
	}
	if line == "no change" {
		return nil
	}
	return d.expectToken(tokenOK, deadline)
}

// Restart reboots the module and waits for its unsolicited "ready" banner,
// then re-disables echo: the reboot resets the echo flag, and everything
// the driver parses afterwards assumes it is off.
func (d *Driver) Restart() error {
	if err := d.sendCommand("RST"); err != nil {
		return err
	}
	if err := d.expectToken(tokenReady, time.Now().Add(d.LongTimeout)); err != nil {
		return err
	}
	return d.DisableEcho()
}

// IP reports the station address from CIFSR. The module answers "0.0.0.0"
// while no address has been acquired; that is returned as-is.
func (d *Driver) IP() (string, error) {
	if err := d.sendCommand("CIFSR"); err != nil {
		return "", err
	}
	deadline := time.Now().Add(d.ShortTimeout)
	ip, err := d.readLine(ipLineMax, deadline)
	if err != nil {
		return "", err
	}
	if err := d.expectToken(tokenOK, deadline); err != nil {
		return "", err
	}
	return ip, nil
}

// SetMuxMode toggles the module's multi-connection flag. The driver only
// flips the flag; it does no per-connection bookkeeping.
func (d *Driver) SetMuxMode(enabled bool) error {
	verb := "CIPMUX=0"
	if enabled {
		verb = "CIPMUX=1"
	}
	if err := d.sendCommand(verb); err != nil {
		return err
	}
	return d.expectToken(tokenOK, time.Now().Add(d.ShortTimeout))
}

// StartTCPServer starts the module's listening server. Ports <= 0 omit the
// port argument and leave the firmware default in place.
func (d *Driver) StartTCPServer(port int) error {
	verb := "CIPSERVER=1"
	if port > 0 {
		verb = fmt.Sprintf("CIPSERVER=1,%d", port)
	}
	if err := d.sendCommand(verb); err != nil {
		return err
	}
	return d.expectToken(tokenOK, time.Now().Add(d.ShortTimeout))
}

// StartTCPClient opens a single TCP connection to host:port.
func (d *Driver) StartTCPClient(host string, port int) error {
	verb := fmt.Sprintf("CIPSTART=%q,%q,%d", "TCP", host, port)
	if err := d.sendCommand(verb); err != nil {
		return err
	}
	return d.expectEither(tokenOK, tokenError, time.Now().Add(d.ShortTimeout))
}

// StartUDPClient opens a UDP transport to host:remotePort, bound locally to
// localPort, with the given peer-binding mode.
func (d *Driver) StartUDPClient(host string, remotePort, localPort int, mode UDPPeerMode) error {
	if !mode.valid() {
		return fmt.Errorf("invalid udp peer mode %d", int(mode))
	}
	verb := fmt.Sprintf("CIPSTART=%q,%q,%d,%d,%s", "UDP", host, remotePort, localPort, string(mode.code()))
	if err := d.sendCommand(verb); err != nil {
		return err
	}
	return d.expectEither(tokenOK, tokenError, time.Now().Add(d.ShortTimeout))
}

// JoinAP associates the station with an access point. Joining takes the
// firmware seconds; the budget is the long timeout, and an explicit FAIL
// terminator (bad credentials, AP gone) is ErrResponseFailed.
func (d *Driver) JoinAP(ssid, password string) error {
	verb := fmt.Sprintf("CWJAP=%q,%q", ssid, password)
	if err := d.sendCommand(verb); err != nil {
		return err
	}
	return d.expectEither(tokenOK, tokenFail, time.Now().Add(d.LongTimeout))
}

// CloseIPClient closes the currently open TCP or UDP transport.
func (d *Driver) CloseIPClient() error {
	if err := d.sendCommand("CIPCLOSE"); err != nil {
		return err
	}
	return d.expectEither(tokenOK, tokenError, time.Now().Add(d.ShortTimeout))
}

// AccessPoints runs a CWLAP scan and returns the visible access points with
// duplicates collapsed. The module must be in station or dual mode; the
// firmware answers a bare ERROR otherwise.
func (d *Driver) AccessPoints() ([]AccessPoint, error) {
	if err := d.sendCommand("CWLAP"); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(d.LongTimeout)
	seen := make(map[AccessPoint]struct{})
	var aps []AccessPoint
	for {
		line, err := d.readLine(scanLineMax, deadline)
		if err != nil {
			return nil, err
		}
		switch line {
		case "":
			continue
		case "OK":
			return aps, nil
		case "ERROR":
			return nil, fmt.Errorf("%w: device not in station or dual mode", ErrResponseFailed)
		}
		ap, err := parseAccessPoint(line)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[ap]; !dup {
			seen[ap] = struct{}{}
			aps = append(aps, ap)
		}
	}
}

// Send transmits one payload over the open transport: CIPSEND with the
// byte count, then the raw payload, then the module's verdict.
func (d *Driver) Send(p []byte) error {
	if err := d.sendCommand(fmt.Sprintf("CIPSEND=%d", len(p))); err != nil {
		return err
	}
	if err := d.sendRaw(p); err != nil {
		return err
	}
	return d.expectEither(tokenOK, tokenError, time.Now().Add(d.ShortTimeout))
}

// Receive waits for one inbound +IPD frame and copies its payload into buf,
// returning the number of bytes stored. The wait for the frame to begin is
// bounded by ConnectTimeout; the payload itself must complete within
// timeout of entry.
//
// The module trails one extra byte after the advertised payload length and
// the driver consumes it, so a frame of n payload bytes stores n+1 bytes.
// Size buf to length+1 to capture everything. When buf fills early the
// remaining frame bytes are still drained, keeping the stream aligned on
// frame boundaries, but their contents are discarded.
func (d *Driver) Receive(buf []byte, timeout time.Duration) (int, error) {
	entry := time.Now()
	if err := d.expectToken("+IPD,", entry.Add(d.ConnectTimeout)); err != nil {
		return 0, err
	}
	field, err := d.readInto(':', lengthFieldMax, time.Now().Add(d.ShortTimeout))
	if err != nil {
		return 0, err
	}
	length, err := strconv.Atoi(strings.TrimSuffix(string(field), ":"))
	if err != nil || length < 0 {
		return 0, protocolErrorf("bad +IPD length %q", string(field))
	}

	deadline := entry.Add(timeout)
	filled := 0
	for consumed := 0; consumed <= length; consumed++ {
		b, err := d.readByteBy(deadline)
		if err != nil {
			return filled, err
		}
		if filled < len(buf) {
			buf[filled] = b
			filled++
		}
	}
	return filled, nil
}
