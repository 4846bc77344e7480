package at

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseAccessPoint(t *testing.T) {
	cases := []struct {
		line string
		want AccessPoint
	}{
		{
			line: `+CWLAP:(3,"HomeNet",-57,"aa:bb:cc:dd:ee:ff",6)`,
			want: AccessPoint{EncryptionWPA2PSK, "HomeNet", -57, "aa:bb:cc:dd:ee:ff", 6},
		},
		{
			line: `+CWLAP:(0,"Guest",-80,"11:22:33:44:55:66",11)`,
			want: AccessPoint{EncryptionOpen, "Guest", -80, "11:22:33:44:55:66", 11},
		},
		{
			// Some firmware builds skip the quotes; fields pass through
			// verbatim in that case.
			line: `+CWLAP:(1,bare,-1,00:00:00:00:00:01,0)`,
			want: AccessPoint{EncryptionWEP, "bare", -1, "00:00:00:00:00:01", 0},
		},
	}
	for _, tc := range cases {
		got, err := parseAccessPoint(tc.line)
		if err != nil {
			t.Fatalf("parseAccessPoint(%q): %v", tc.line, err)
		}
		if got != tc.want {
			t.Fatalf("parseAccessPoint(%q) = %+v, want %+v", tc.line, got, tc.want)
		}
	}
}

// Every well-formed record whose SSID and MAC avoid ',' and '"' survives a
// textual round trip through the parser.
func TestParseAccessPointRoundTrip(t *testing.T) {
	aps := []AccessPoint{
		{EncryptionOpen, "cafe", -90, "de:ad:be:ef:00:01", 1},
		{EncryptionWEP, "w e p", -30, "00:11:22:33:44:55", 13},
		{EncryptionWPAPSK, "", -64, "ff:ff:ff:ff:ff:ff", 7},
		{EncryptionWPA2PSK, "UPPER", 0, "aa:aa:aa:aa:aa:aa", 6},
		{EncryptionWPAWPA2PSK, "mixed-psk", -12, "12:34:56:78:9a:bc", 11},
	}
	for _, want := range aps {
		line := fmt.Sprintf("+CWLAP:(%d,%q,%d,%q,%d)", int(want.Encryption), want.SSID, want.RSSI, want.MAC, want.Channel)
		got, err := parseAccessPoint(line)
		if err != nil {
			t.Fatalf("parseAccessPoint(%q): %v", line, err)
		}
		if got != want {
			t.Fatalf("round trip %q = %+v, want %+v", line, got, want)
		}
	}
}

func TestParseAccessPointRejectsMalformed(t *testing.T) {
	lines := []string{
		`+CWLAP:(9,"x",-1,"m",1)`,     // unknown encryption code
		`+CWLAP:(3,"x",notanum,"m",1)`, // rssi not numeric
		`+CWLAP:(3,"x",-1,"m",-2)`,     // negative channel
		`+CWLAP:(3,"x",-1,"m")`,        // missing field
		`+CWLAP:3,"x",-1,"m",1)`,       // missing paren
		`CWLAP:(3,"x",-1,"m",1)`,       // wrong prefix
	}
	for _, line := range lines {
		_, err := parseAccessPoint(line)
		var perr *ProtocolError
		if !errors.As(err, &perr) {
			t.Fatalf("parseAccessPoint(%q) err = %v, want ProtocolError", line, err)
		}
	}
}

func TestEncryptionCodes(t *testing.T) {
	for code, want := range map[string]Encryption{
		"0": EncryptionOpen,
		"1": EncryptionWEP,
		"2": EncryptionWPAPSK,
		"3": EncryptionWPA2PSK,
		"4": EncryptionWPAWPA2PSK,
	} {
		got, err := encryptionFromCode(code)
		if err != nil {
			t.Fatalf("encryptionFromCode(%q): %v", code, err)
		}
		if got != want {
			t.Fatalf("encryptionFromCode(%q) = %v, want %v", code, got, want)
		}
	}
	if _, err := encryptionFromCode("5"); err == nil {
		t.Fatal("expected error for unknown code")
	}
}
