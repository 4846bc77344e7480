package at

import "fmt"

// WifiMode selects the module's radio role.
type WifiMode int

const (
	WifiModeStation WifiMode = iota + 1
	WifiModeAccessPoint
	WifiModeBoth
)

func (m WifiMode) valid() bool {
	return m >= WifiModeStation && m <= WifiModeBoth
}

// code is the single-digit ASCII wire form used by CWMODE.
func (m WifiMode) code() byte {
	return '0' + byte(m)
}

func (m WifiMode) String() string {
	switch m {
	case WifiModeStation:
		return "station"
	case WifiModeAccessPoint:
		return "access point"
	case WifiModeBoth:
		return "station+ap"
	default:
		return fmt.Sprintf("WifiMode(%d)", int(m))
	}
}

func wifiModeFromCode(b byte) (WifiMode, error) {
	m := WifiMode(b - '0')
	if !m.valid() {
		return 0, protocolErrorf("unexpected wifi mode code %q", string(b))
	}
	return m, nil
}

// UDPPeerMode controls how CIPSTART="UDP" binds the remote peer.
type UDPPeerMode int

const (
	// UDPPeerDefined locks the peer to the remote given at open time.
	UDPPeerDefined UDPPeerMode = iota

	// UDPPeerChangeOnce allows the remote to change a single time.
	UDPPeerChangeOnce

	// UDPPeerEstablish re-establishes the peer from each inbound datagram.
	UDPPeerEstablish
)

func (m UDPPeerMode) valid() bool {
	return m >= UDPPeerDefined && m <= UDPPeerEstablish
}

func (m UDPPeerMode) code() byte {
	return '0' + byte(m)
}

func (m UDPPeerMode) String() string {
	switch m {
	case UDPPeerDefined:
		return "defined remote"
	case UDPPeerChangeOnce:
		return "change remote once"
	case UDPPeerEstablish:
		return "establish peer"
	default:
		return fmt.Sprintf("UDPPeerMode(%d)", int(m))
	}
}
