package fastagi

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Message is the tagged union the wire parser produces: NetworkStart,
// VariableDump, Status, or Hangup. FastAGIEnd is a sibling signal
// returned by Connection.ReadMessage on a clean peer close; the parser
// itself never emits it, since it isn't a line on the wire.
type Message interface {
	agiMessage()
}

// NetworkStart is the literal handshake opener "agi_network: yes".
type NetworkStart struct{}

func (NetworkStart) agiMessage() {}

// VariableDump is the initial block of agi_<name>: <value> lines
// Asterisk sends before invoking a request URI.
type VariableDump struct {
	// Variables holds every agi_* line verbatim, keyed by its full
	// "agi_name" prefix (not stripped), per spec.md's S1 scenario.
	Variables map[string]string

	// RequestURI is agi_network_script or agi_request (first-seen
	// preferred when both are present), parsed as a URL.
	RequestURI *url.URL

	// Query is the decoded query-parameter multimap of RequestURI.
	Query url.Values
}

func (*VariableDump) agiMessage() {}

// Status is a one-line command reply: "CODE result=N[ EXTRA]".
type Status struct {
	Code   int
	Result int

	// OperationalData is the parenthesized free-form string or bare
	// trailing token, if any.
	OperationalData string
	HasOperationalData bool
}

func (Status) agiMessage() {}

// Hangup is the out-of-band sentinel line "HANGUP".
type Hangup struct{}

func (Hangup) agiMessage() {}

// FastAGIEnd signals that the peer closed the stream cleanly with no
// partial message pending. It is returned by Connection.ReadMessage,
// never by the parser.
type FastAGIEnd struct{}

func (FastAGIEnd) agiMessage() {}

var statusLineRE = regexp.MustCompile(`^(\d{3}) result=(-?\d+)(?: (.*))?$`)

// requestURIKeys lists the keys accepted as the request URI (Open
// Question 2 of SPEC_FULL.md). Their order here does not matter: the
// first dump line carrying either key wins when both are present.
var requestURIKeys = []string{"agi_network_script", "agi_request"}

// ParseLine classifies a single LF-terminated (CRLF tolerated) line as
// a NetworkStart, Status, or Hangup message. It is the entry point
// used whenever the connection's sequencing state expects exactly one
// of those shapes next.
func ParseLine(line []byte) (Message, error) {
	s := strings.TrimSuffix(string(line), "\r")

	switch s {
	case "agi_network: yes":
		return NetworkStart{}, nil
	case "HANGUP":
		return Hangup{}, nil
	}

	if m := statusLineRE.FindStringSubmatch(s); m != nil {
		code, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, errors.Wrap(err, "parsing status code")
		}
		result, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, errors.Wrap(err, "parsing status result")
		}

		st := Status{Code: code, Result: result}
		if m[3] != "" {
			st.HasOperationalData = true
			st.OperationalData = unwrapOperationalData(m[3])
		}
		return st, nil
	}

	return nil, &NotAnAGIMessageError{Line: s}
}

// unwrapOperationalData strips the parenthesization of the "(free
// text)" reply form; a bare token is returned unchanged, per spec.md
// §4.A's status grammar.
func unwrapOperationalData(s string) string {
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		return s[1 : len(s)-1]
	}
	return s
}

// ParseVariableDump parses the block of agi_<name>: <value> lines
// (already split on LF, with the terminating blank line excluded) that
// Asterisk sends immediately after "agi_network: yes".
func ParseVariableDump(lines [][]byte) (*VariableDump, error) {
	if len(lines) == 0 {
		return nil, &NotAVariableDumpError{Reason: "empty block"}
	}

	vars := make(map[string]string, len(lines))
	var requestKey, requestVal string

	for _, raw := range lines {
		line := strings.TrimSuffix(string(raw), "\r")
		if line == "" {
			continue
		}

		idx := strings.Index(line, ":")
		if idx <= 0 || !strings.HasPrefix(line, "agi_") {
			return nil, &NotAVariableDumpError{Reason: "malformed line: " + line}
		}

		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		vars[key] = val

		if requestKey == "" {
			for _, want := range requestURIKeys {
				if key == want {
					requestKey = key
					requestVal = val
					break
				}
			}
		}
	}

	if requestKey == "" {
		return nil, &VariableDumpWithoutRequestError{}
	}

	u, err := url.Parse(requestVal)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing request URI %q", requestVal)
	}

	return &VariableDump{
		Variables:  vars,
		RequestURI: u,
		Query:      u.Query(),
	}, nil
}
