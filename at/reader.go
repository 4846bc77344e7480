package at

import (
	"fmt"
	"time"
)

// pollInterval paces the availability spin loop. At the nominal 9600 baud a
// byte lands roughly every millisecond, so a finer grain buys nothing.
const pollInterval = time.Millisecond

// readByteBy returns the next control-channel byte, spinning on Available
// until the deadline. A byte that is already buffered is always consumed,
// even if the deadline has just lapsed (one-byte slack).
func (d *Driver) readByteBy(deadline time.Time) (byte, error) {
	for {
		if d.src.Available() {
			b, err := d.src.ReadByte()
			if err != nil {
				return 0, fmt.Errorf("read control channel: %w", err)
			}
			d.metrics.BytesRead.Add(1)
			return b, nil
		}
		if !time.Now().Before(deadline) {
			return 0, ErrTimeout
		}
		time.Sleep(pollInterval)
	}
}

// readLine consumes bytes until '\n' or max bytes, whichever comes first,
// and returns the line with its last two bytes dropped. The module
// terminates every line with CRLF, so the two dropped bytes are the
// terminator; lines shorter than two bytes collapse to "".
func (d *Driver) readLine(max int, deadline time.Time) (string, error) {
	buf := make([]byte, 0, max)
	for len(buf) < max {
		b, err := d.readByteBy(deadline)
		if err != nil {
			return "", err
		}
		buf = append(buf, b)
		if b == '\n' {
			break
		}
	}
	if len(buf) < 2 {
		return "", nil
	}
	return string(buf[:len(buf)-2]), nil
}

// readInto buffers bytes until the terminator is consumed (the terminator is
// kept) or max bytes have been buffered, and returns the filled prefix.
func (d *Driver) readInto(term byte, max int, deadline time.Time) ([]byte, error) {
	buf := make([]byte, 0, max)
	for len(buf) < max {
		b, err := d.readByteBy(deadline)
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
		if b == term {
			break
		}
	}
	return buf, nil
}

// expectToken scans the stream for pattern. The cursor resets to zero on any
// mismatch; the mismatched byte itself is not retested against the head of
// the pattern. The module's emission grammar never produces the overlapping
// prefixes where that would matter, and the firmware side depends on this
// exact consumption behavior.
func (d *Driver) expectToken(pattern string, deadline time.Time) error {
	cursor := 0
	for cursor < len(pattern) {
		b, err := d.readByteBy(deadline)
		if err != nil {
			return err
		}
		if b == pattern[cursor] {
			cursor++
		} else {
			cursor = 0
		}
	}
	return nil
}

// expectEither runs two token matchers in parallel over the same bytes and
// returns nil when pass completes or ErrResponseFailed when fail completes.
// The pass matcher is evaluated first, so if both would complete on the same
// byte, pass wins.
func (d *Driver) expectEither(pass, fail string, deadline time.Time) error {
	pc, fc := 0, 0
	for {
		b, err := d.readByteBy(deadline)
		if err != nil {
			return err
		}
		if b == pass[pc] {
			pc++
		} else {
			pc = 0
		}
		if pc == len(pass) {
			return nil
		}
		if b == fail[fc] {
			fc++
		} else {
			fc = 0
		}
		if fc == len(fail) {
			return ErrResponseFailed
		}
	}
}
