package fastagi

import (
	"testing"
)

func TestParseLineNetworkStart(t *testing.T) {
	msg, err := ParseLine([]byte("agi_network: yes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := msg.(NetworkStart); !ok {
		t.Fatalf("expected NetworkStart, got %#v", msg)
	}
}

func TestParseLineHangup(t *testing.T) {
	msg, err := ParseLine([]byte("HANGUP"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := msg.(Hangup); !ok {
		t.Fatalf("expected Hangup, got %#v", msg)
	}
}

// TestParseLineStatusWithOperationalData covers S3 of spec.md §8.
func TestParseLineStatusWithOperationalData(t *testing.T) {
	msg, err := ParseLine([]byte("200 result=1 (some data)"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, ok := msg.(Status)
	if !ok {
		t.Fatalf("expected Status, got %#v", msg)
	}
	if st.Code != 200 || st.Result != 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if !st.HasOperationalData || st.OperationalData != "some data" {
		t.Fatalf("unexpected operational data: %+v", st)
	}
}

// TestParseLineStatusWithoutExtra covers S4 of spec.md §8.
func TestParseLineStatusWithoutExtra(t *testing.T) {
	msg, err := ParseLine([]byte("200 result=0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, ok := msg.(Status)
	if !ok {
		t.Fatalf("expected Status, got %#v", msg)
	}
	if st.Code != 200 || st.Result != 0 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if st.HasOperationalData {
		t.Fatalf("expected no operational data, got %q", st.OperationalData)
	}
}

func TestParseLineStatusBareToken(t *testing.T) {
	msg, err := ParseLine([]byte("510 result=-1 timeout"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, ok := msg.(Status)
	if !ok {
		t.Fatalf("expected Status, got %#v", msg)
	}
	if st.Result != -1 || st.OperationalData != "timeout" {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestParseLineCRLF(t *testing.T) {
	msg, err := ParseLine([]byte("HANGUP\r"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := msg.(Hangup); !ok {
		t.Fatalf("expected Hangup, got %#v", msg)
	}
}

func TestParseLineUnknown(t *testing.T) {
	_, err := ParseLine([]byte("garbage line"))
	if _, ok := err.(*NotAnAGIMessageError); !ok {
		t.Fatalf("expected NotAnAGIMessageError, got %#v", err)
	}
}

// TestParseVariableDumpHandshake covers S1 of spec.md §8.
func TestParseVariableDumpHandshake(t *testing.T) {
	lines := [][]byte{
		[]byte("agi_network_script: script/path?k=v"),
		[]byte("agi_channel: SIP/1"),
	}
	dump, err := ParseVariableDump(lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dump.RequestURI.Path != "script/path" {
		t.Fatalf("unexpected path: %q", dump.RequestURI.Path)
	}
	if got := dump.Query.Get("k"); got != "v" {
		t.Fatalf("unexpected query: %q", got)
	}
	if dump.Variables["agi_channel"] != "SIP/1" {
		t.Fatalf("unexpected variables: %+v", dump.Variables)
	}
}

func TestParseVariableDumpFirstSeenRequestKeyWins(t *testing.T) {
	lines := [][]byte{
		[]byte("agi_request: first/path"),
		[]byte("agi_network_script: second/path"),
	}
	dump, err := ParseVariableDump(lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// agi_request appeared first in the dump, so it wins per Open
	// Question 2's first-seen rule.
	if dump.RequestURI.Path != "first/path" {
		t.Fatalf("unexpected path: %q", dump.RequestURI.Path)
	}
}

func TestParseVariableDumpWithoutRequest(t *testing.T) {
	lines := [][]byte{
		[]byte("agi_channel: SIP/1"),
	}
	_, err := ParseVariableDump(lines)
	if _, ok := err.(*VariableDumpWithoutRequestError); !ok {
		t.Fatalf("expected VariableDumpWithoutRequestError, got %#v", err)
	}
}

func TestParseVariableDumpMalformed(t *testing.T) {
	lines := [][]byte{
		[]byte("not a valid line"),
	}
	_, err := ParseVariableDump(lines)
	if _, ok := err.(*NotAVariableDumpError); !ok {
		t.Fatalf("expected NotAVariableDumpError, got %#v", err)
	}
}
