package at

import (
	"bufio"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/rjboer/esp8266/internal/logging"
)

// scriptSource plays back a canned module reply byte by byte. Once the
// script runs dry Available stays false, so deadline-bounded reads time out
// the same way a silent module would.
type scriptSource struct {
	data []byte
	pos  int
}

func (s *scriptSource) Available() bool {
	return s.pos < len(s.data)
}

func (s *scriptSource) ReadByte() (byte, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

func (s *scriptSource) remaining() int {
	return len(s.data) - s.pos
}

// newTestDriver builds a driver over a scripted reply and a recording sink,
// skipping the construction-time probe so each test drives exactly one
// operation. Budgets are shrunk so timeout paths stay fast.
func newTestDriver(t *testing.T, script string) (*Driver, *scriptSource, *bytes.Buffer) {
	t.Helper()
	src := &scriptSource{data: []byte(script)}
	sink := &bytes.Buffer{}
	d := &Driver{
		src:            src,
		w:              bufio.NewWriter(sink),
		ShortTimeout:   50 * time.Millisecond,
		LongTimeout:    100 * time.Millisecond,
		ConnectTimeout: 100 * time.Millisecond,
		log:            logging.Default(),
	}
	return d, src, sink
}

func wantSent(t *testing.T, sink *bytes.Buffer, want string) {
	t.Helper()
	if got := sink.String(); got != want {
		t.Fatalf("sink bytes = %q, want %q", got, want)
	}
}

func wantConsumed(t *testing.T, src *scriptSource) {
	t.Helper()
	if src.remaining() != 0 {
		t.Fatalf("%d unread script bytes: %q", src.remaining(), src.data[src.pos:])
	}
}
