package fastagi

import (
	"bytes"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// connState tracks the per-connection sequencing state machine from
// spec.md §4.C.
type connState int

const (
	stateFresh connState = iota
	stateAwaitDump
	stateReady
)

// Connection owns one accepted TCP stream for the duration of a single
// FastAGI conversation. It is a linear resource: once handed to a
// Handler it must not be shared with another goroutine.
type Connection struct {
	conn net.Conn

	mu      sync.Mutex
	buf     []byte
	state   connState
	hungup  bool
	sentAny bool

	logger *zap.Logger
}

// NewConnection wraps an accepted net.Conn. logger may be nil, in
// which case a no-op logger is used.
func NewConnection(conn net.Conn, logger *zap.Logger) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connection{
		conn:   conn,
		logger: logger,
	}
}

// Hungup reports whether a HANGUP line has been observed on this
// connection. It is sticky: once true, it stays true.
func (c *Connection) Hungup() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hungup
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the peer address of the underlying socket.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

const readChunkSize = 4096

// fill performs exactly one socket read and appends whatever bytes it
// returns to the residual buffer, even if it also returns an error
// (io.Reader's contract allows n > 0 with err != nil).
func (c *Connection) fill() error {
	chunk := make([]byte, readChunkSize)
	n, err := c.conn.Read(chunk)
	if n > 0 {
		c.buf = append(c.buf, chunk[:n]...)
	}
	return err
}

// nextLine extracts and removes one LF-terminated line (the LF itself
// consumed, not included) from the residual buffer, reading further
// from the socket only when the buffer does not already contain a
// full line. It never returns a partial line.
func (c *Connection) nextLine() ([]byte, error) {
	for {
		if idx := bytes.IndexByte(c.buf, '\n'); idx >= 0 {
			line := c.buf[:idx]
			c.buf = c.buf[idx+1:]
			return line, nil
		}

		if err := c.fill(); err != nil {
			if err == io.EOF && len(c.buf) == 0 { // nolint:errorlint // conn.Read returns io.EOF itself
				return nil, io.EOF
			}
			return nil, errors.Wrap(err, "reading line")
		}
	}
}

// readDumpBlock reads lines up to and including the block-terminating
// blank line, returning every non-empty line seen.
func (c *Connection) readDumpBlock() ([][]byte, error) {
	var lines [][]byte
	for {
		line, err := c.nextLine()
		if err != nil {
			if err == io.EOF && len(lines) > 0 { // nolint:errorlint // bare sentinel from nextLine
				return nil, errors.Wrap(err, "reading variable dump")
			}
			return nil, err
		}
		if len(bytes.TrimSuffix(line, []byte("\r"))) == 0 {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// ReadMessage returns the next complete inbound message, pulling
// further bytes from the socket only when the buffer does not already
// contain one. It never returns a partial message: EOF observed before
// a message is complete becomes a ReadError, unless the residual
// buffer is empty at EOF, in which case FastAGIEnd is returned.
func (c *Connection) ReadMessage() (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readMessageLocked()
}

func (c *Connection) readMessageLocked() (Message, error) {
	switch c.state {
	case stateFresh:
		line, err := c.nextLine()
		if err != nil {
			return c.translateReadErr(err)
		}
		msg, perr := ParseLine(line)
		if perr != nil {
			return nil, perr
		}
		if _, ok := msg.(NetworkStart); !ok {
			return nil, &NotAnAGIMessageError{Line: string(line)}
		}
		c.state = stateAwaitDump
		return msg, nil

	case stateAwaitDump:
		lines, err := c.readDumpBlock()
		if err != nil {
			return c.translateReadErr(err)
		}
		dump, perr := ParseVariableDump(lines)
		if perr != nil {
			return nil, perr
		}
		c.state = stateReady
		return dump, nil

	default: // stateReady
		line, err := c.nextLine()
		if err != nil {
			return c.translateReadErr(err)
		}
		msg, perr := ParseLine(line)
		if perr != nil {
			return nil, perr
		}

		switch m := msg.(type) {
		case NetworkStart:
			return nil, &NetworkStartAfterOtherMessageError{}
		case Hangup:
			c.hungup = true
			return m, nil
		case Status:
			if !c.sentAny {
				return nil, ErrUnsolicitedStatus
			}
			return m, nil
		default:
			return msg, nil
		}
	}
}

// NotifyBestEffort writes cmd's wire encoding without waiting for or
// consuming a reply. It exists for announcements made immediately
// before the connection is torn down regardless of outcome — the
// server's route-miss notice (spec.md §4.F) — where blocking on a
// reply that may never come would only delay the close.
func (c *Connection) NotifyBestEffort(cmd Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.conn.Write(cmd.Encode())
}

// translateReadErr implements the EOF-vs-ReadError distinction
// described on ReadMessage. nextLine/readDumpBlock return the bare
// io.EOF sentinel only when the residual buffer was empty at EOF (and,
// for readDumpBlock, no line of the dump had been read yet);
// any other error (including one wrapping io.EOF because a partial
// message was pending) is a ReadError.
func (c *Connection) translateReadErr(err error) (Message, error) {
	if err == io.EOF { // nolint:errorlint // see comment above: deliberate identity check
		return FastAGIEnd{}, nil
	}
	return nil, &ReadError{Cause: err}
}

// Send writes the encoded command, then reads messages in a loop,
// silently consuming any Hangup lines (setting the sticky flag) until
// a Status arrives. If the hangup flag was already set, the command is
// still sent — Asterisk accepts this and typically answers with 511.
func (c *Connection) Send(cmd Command) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := cmd.Encode()

	var sentErr error
	defer func() {
		if ce := c.logger.Check(zap.DebugLevel, "agi command"); ce != nil {
			ce.Write(zap.String("command", cmd.String()), zap.Error(sentErr))
		}
	}()

	c.sentAny = true
	if _, err := c.conn.Write(line); err != nil {
		sentErr = errors.Wrap(err, "writing command")
		return Status{}, sentErr
	}

	for {
		msg, err := c.readMessageLocked()
		if err != nil {
			var notAGI *NotAnAGIMessageError
			if errors.As(err, &notAGI) {
				sentErr = &NotAStatusError{Message: notAGI.Line}
				return Status{}, sentErr
			}
			sentErr = err
			return Status{}, sentErr
		}

		switch m := msg.(type) {
		case Hangup:
			continue
		case Status:
			return m, nil
		case FastAGIEnd:
			sentErr = &ReadError{Cause: io.EOF}
			return Status{}, sentErr
		default:
			sentErr = &NotAStatusError{Message: "unexpected message while awaiting reply"}
			return Status{}, sentErr
		}
	}
}
