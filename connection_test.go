package fastagi

import (
	"bufio"
	"net"
	"testing"
)

// TestConnectionHandshakeSegmentationIndependence exercises spec.md §8
// property 1 and scenarios S1/S2: the same handshake bytes must parse
// identically whether delivered in one slab or in 3-byte chunks.
func TestConnectionHandshakeSegmentationIndependence(t *testing.T) {
	input := []byte("agi_network: yes\nagi_network_script: script/path?k=v\nagi_channel: SIP/1\n\n")

	t.Run("single write", func(t *testing.T) {
		checkHandshake(t, readHandshake(t, input, 0))
	})

	t.Run("chunked write", func(t *testing.T) {
		checkHandshake(t, readHandshake(t, input, 3))
	})
}

func readHandshake(t *testing.T, data []byte, chunkSize int) *VariableDump {
	t.Helper()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		if chunkSize <= 0 {
			_, _ = client.Write(data)
			return
		}
		for i := 0; i < len(data); i += chunkSize {
			end := i + chunkSize
			if end > len(data) {
				end = len(data)
			}
			if _, err := client.Write(data[i:end]); err != nil {
				return
			}
		}
	}()

	conn := NewConnection(server, nil)

	msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading NetworkStart: %v", err)
	}
	if _, ok := msg.(NetworkStart); !ok {
		t.Fatalf("expected NetworkStart, got %#v", msg)
	}

	msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading VariableDump: %v", err)
	}
	dump, ok := msg.(*VariableDump)
	if !ok {
		t.Fatalf("expected VariableDump, got %#v", msg)
	}
	return dump
}

func checkHandshake(t *testing.T, dump *VariableDump) {
	t.Helper()
	if dump.RequestURI.Path != "script/path" {
		t.Fatalf("unexpected path: %q", dump.RequestURI.Path)
	}
	if got := dump.Query.Get("k"); got != "v" {
		t.Fatalf("unexpected query param k: %q", got)
	}
	if dump.Variables["agi_channel"] != "SIP/1" {
		t.Fatalf("unexpected variables: %+v", dump.Variables)
	}
}

// TestSendFIFOAndHangupTransparency exercises spec.md §8 properties 3
// and 4: replies come back in the order commands were sent, and
// interleaved HANGUP lines don't change which status a given Send
// call sees, while leaving the sticky flag set.
func TestSendFIFOAndHangupTransparency(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	scripted := []string{
		"200 result=1\n",
		"HANGUP\nHANGUP\n200 result=2\n",
		"200 result=3\n",
	}

	go func() {
		r := bufio.NewReader(client)
		for _, reply := range scripted {
			if _, err := r.ReadString('\n'); err != nil {
				return
			}
			if _, err := client.Write([]byte(reply)); err != nil {
				return
			}
		}
	}()

	conn := NewConnection(server, nil)
	conn.state = stateReady // bypass handshake; this test is about Send, not sequencing.

	want := []int{1, 2, 3}
	for i, w := range want {
		st, err := conn.Send(newCommand("NOOP"))
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if st.Result != w {
			t.Fatalf("send %d: got result %d, want %d", i, st.Result, w)
		}
	}

	if !conn.Hungup() {
		t.Fatal("expected sticky hangup flag to be set")
	}
}

// TestReadMessageFastAGIEndOnCleanClose covers the "peer closed, no
// partial message pending" branch of ReadMessage.
func TestReadMessageFastAGIEndOnCleanClose(t *testing.T) {
	client, server := net.Pipe()
	client.Close()

	conn := NewConnection(server, nil)
	msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := msg.(FastAGIEnd); !ok {
		t.Fatalf("expected FastAGIEnd, got %#v", msg)
	}
}

// TestReadMessageReadErrorOnPartialClose covers the "peer closed
// mid-message" branch of ReadMessage.
func TestReadMessageReadErrorOnPartialClose(t *testing.T) {
	client, server := net.Pipe()

	go func() {
		_, _ = client.Write([]byte("agi_network: yes\n"))
		_, _ = client.Write([]byte("agi_network_script: foo"))
		client.Close()
	}()

	conn := NewConnection(server, nil)
	if _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("unexpected error on NetworkStart: %v", err)
	}

	_, err := conn.ReadMessage()
	if _, ok := err.(*ReadError); !ok {
		t.Fatalf("expected *ReadError, got %#v", err)
	}
}
