// Package link orchestrates module bring-up on top of the at driver:
// waiting for the module to answer, associating with an access point,
// acquiring an address and opening a transport. The driver stays stateless;
// whatever state lives here exists for diagnostics only.
package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/rjboer/esp8266/at"
	"github.com/rjboer/esp8266/internal/logging"
)

// State is the link manager's view of the module.
type State int

const (
	StateDown State = iota
	StateReady
	StateJoined
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDown:
		return "down"
	case StateReady:
		return "ready"
	case StateJoined:
		return "joined"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the link for diagnostics.
type Status struct {
	State State  `json:"state"`
	IP    string `json:"ip"`
}

var errNotReady = errors.New("module not answering")

// unassignedIP is what CIFSR reports before DHCP completes.
const unassignedIP = "0.0.0.0"

// Manager drives one module through bring-up. Like the driver it owns, it
// is single-owner; callers needing concurrency serialize externally.
type Manager struct {
	drv *at.Driver
	log logging.Logger

	state State
	ip    string
}

// New wraps an existing driver.
func New(drv *at.Driver, log logging.Logger) *Manager {
	if log == nil {
		log = logging.Default()
	}
	return &Manager{
		drv: drv,
		log: log.With(logging.Field{Key: "subsystem", Value: "link"}),
	}
}

// Status reports the manager's last-known link state.
func (m *Manager) Status() Status {
	return Status{State: m.state, IP: m.ip}
}

// Driver exposes the underlying driver, for operations the manager does not
// wrap.
func (m *Manager) Driver() *at.Driver {
	return m.drv
}

func (m *Manager) newBackOff(ctx context.Context, maxElapsed time.Duration) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = maxElapsed
	return backoff.WithContext(b, ctx)
}

// WaitReady probes the module until it answers, pacing the probes with
// capped exponential backoff. Modules straight out of power-on can take a
// few seconds before the AT interpreter responds.
func (m *Manager) WaitReady(ctx context.Context) error {
	err := backoff.Retry(func() error {
		if m.drv.IsReady() {
			return nil
		}
		m.log.Debug("module not ready, retrying")
		return errNotReady
	}, m.newBackOff(ctx, 20*time.Second))
	if err != nil {
		return fmt.Errorf("wait for module: %w", err)
	}
	m.state = StateReady
	m.log.Info("module ready")
	return nil
}

// Join puts the module in station mode, associates with the access point
// and polls until an address is assigned, returning the address. A module
// already in station mode answers the mode set with "no change", which the
// driver treats as success.
func (m *Manager) Join(ctx context.Context, ssid, password string) (string, error) {
	if err := m.drv.SetWifiMode(at.WifiModeStation); err != nil {
		return "", fmt.Errorf("set station mode: %w", err)
	}
	if err := m.drv.JoinAP(ssid, password); err != nil {
		return "", fmt.Errorf("join %q: %w", ssid, err)
	}

	var ip string
	err := backoff.Retry(func() error {
		got, err := m.drv.IP()
		if err != nil {
			return err
		}
		if got == "" || got == unassignedIP {
			return fmt.Errorf("no address assigned yet")
		}
		ip = got
		return nil
	}, m.newBackOff(ctx, 30*time.Second))
	if err != nil {
		return "", fmt.Errorf("acquire address on %q: %w", ssid, err)
	}

	m.state = StateJoined
	m.ip = ip
	m.log.Info("joined network", logging.Field{Key: "ssid", Value: ssid}, logging.Field{Key: "ip", Value: ip})
	return ip, nil
}

// DialTCP opens the module's single TCP transport to host:port.
func (m *Manager) DialTCP(host string, port int) error {
	if err := m.drv.StartTCPClient(host, port); err != nil {
		return fmt.Errorf("dial tcp %s:%d: %w", host, port, err)
	}
	m.state = StateConnected
	m.log.Info("tcp transport open", logging.Field{Key: "host", Value: host}, logging.Field{Key: "port", Value: port})
	return nil
}

// DialUDP opens the module's UDP transport.
func (m *Manager) DialUDP(host string, remotePort, localPort int, mode at.UDPPeerMode) error {
	if err := m.drv.StartUDPClient(host, remotePort, localPort, mode); err != nil {
		return fmt.Errorf("dial udp %s:%d: %w", host, remotePort, err)
	}
	m.state = StateConnected
	m.log.Info("udp transport open", logging.Field{Key: "host", Value: host}, logging.Field{Key: "port", Value: remotePort})
	return nil
}

// SendFrame transmits one payload over the open transport.
func (m *Manager) SendFrame(p []byte) error {
	if err := m.drv.Send(p); err != nil {
		return fmt.Errorf("send frame of %d bytes: %w", len(p), err)
	}
	return nil
}

// RecvFrame waits for one inbound frame and copies its payload into buf,
// returning the number of bytes stored. The driver consumes one byte past
// the advertised frame length; size buf accordingly.
func (m *Manager) RecvFrame(buf []byte, timeout time.Duration) (int, error) {
	n, err := m.drv.Receive(buf, timeout)
	if err != nil {
		return n, fmt.Errorf("receive frame: %w", err)
	}
	return n, nil
}

// Close shuts the open transport.
func (m *Manager) Close() error {
	err := m.drv.CloseIPClient()
	if m.state == StateConnected {
		m.state = StateJoined
	}
	return err
}

// Restart reboots the module and waits for it to come back, dropping all
// link state.
func (m *Manager) Restart(ctx context.Context) error {
	m.state = StateDown
	m.ip = ""
	if err := m.drv.Restart(); err != nil {
		return fmt.Errorf("restart module: %w", err)
	}
	return m.WaitReady(ctx)
}
