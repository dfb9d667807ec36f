package fastagi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Command is the wire-encoding half of an AGI command/reply pair
// (spec.md §4.B): it knows its own textual form. Connection.Send
// writes Encode() and loops parsing replies until a Status arrives;
// the Connection methods below (Answer, Exec, ...) interpret that
// Status into the shape each command promises.
type Command interface {
	// Encode renders the command as a single LF-terminated wire line.
	Encode() []byte

	// String renders a human-readable form for logging, without the
	// trailing LF.
	String() string
}

// rawCommand is the concrete Command built by every verb constructor
// below: a name plus already-quoted arguments.
type rawCommand struct {
	name string
	args []string
}

func newCommand(name string, args ...string) rawCommand {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = quoteArg(a)
	}
	return rawCommand{name: name, args: quoted}
}

func (c rawCommand) String() string {
	if len(c.args) == 0 {
		return c.name
	}
	return c.name + " " + strings.Join(c.args, " ")
}

func (c rawCommand) Encode() []byte {
	return []byte(c.String() + "\n")
}

// quoteArg wraps an argument containing whitespace in double quotes,
// backslash-escaping any embedded quote or backslash, per spec.md §6's
// outbound wire-protocol rule. Arguments without whitespace pass
// through unchanged.
func quoteArg(s string) string {
	if !strings.ContainsAny(s, " \t") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// State describes the Asterisk channel state, mapped directly to the
// Asterisk enumerations. Carried over from the teacher repo verbatim.
type State int

const (
	StateDown State = iota
	StateReserved
	StateOffhook
	StateDialing
	StateRing
	StateRinging
	StateUp
	StateBusy
	StateDialingOffHook
	StatePreRing
)

// Answer answers the channel.
func (c *Connection) Answer() error {
	st, err := c.Send(newCommand("ANSWER"))
	if err != nil {
		return err
	}
	return expect200(st)
}

// Hangup terminates the call.
func (c *Connection) Hangup() error {
	st, err := c.Send(newCommand("HANGUP"))
	if err != nil {
		return err
	}
	return expect200(st)
}

// ChannelStatus returns the channel's current State.
func (c *Connection) ChannelStatus() (State, error) {
	st, err := c.Send(newCommand("CHANNEL STATUS"))
	if err != nil {
		return StateDown, err
	}
	if st.Code != 200 {
		return StateDown, Not200(st)
	}
	return State(st.Result), nil
}

// Exec runs a dialplan application and returns its operational data.
func (c *Connection) Exec(app string, args ...string) (string, error) {
	cmd := append([]string{app}, args...)
	st, err := c.Send(newCommand("EXEC", cmd...))
	if err != nil {
		return "", err
	}
	if st.Code != 200 {
		return "", Not200(st)
	}
	return st.OperationalData, nil
}

// GetVariable gets the value of the given channel variable.
func (c *Connection) GetVariable(key string) (string, error) {
	st, err := c.Send(newCommand("GET VARIABLE", key))
	if err != nil {
		return "", err
	}
	if st.Code != 200 {
		return "", Not200(st)
	}
	return st.OperationalData, nil
}

// SetVariable sets the given channel variable to the provided value.
func (c *Connection) SetVariable(key, val string) error {
	st, err := c.Send(newCommand("SET VARIABLE", key, val))
	if err != nil {
		return err
	}
	return expect200(st)
}

// GetData plays a sound file and collects DTMF digits, returning the
// digits received.
func (c *Connection) GetData(sound string, timeout time.Duration, maxDigits int) (string, error) {
	if sound == "" {
		sound = "silence/1"
	}
	st, err := c.Send(newCommand("GET DATA", sound, toMSec(timeout), strconv.Itoa(maxDigits)))
	if err != nil {
		return "", err
	}
	if st.Code != 200 {
		return "", Not200(st)
	}
	return st.OperationalData, nil
}

// WaitForDigit waits up to timeout for a single DTMF digit.
func (c *Connection) WaitForDigit(timeout time.Duration) (string, error) {
	st, err := c.Send(newCommand("WAIT FOR DIGIT", toMSec(timeout)))
	if err != nil {
		return "", err
	}
	if st.Code != 200 {
		return "", Not200(st)
	}
	if st.Result <= 0 {
		return "", nil
	}
	return string(rune(st.Result)), nil
}

// StreamFile plays the given sound file, interruptible by any digit in
// escapeDigits.
func (c *Connection) StreamFile(name, escapeDigits string, offset int) (string, error) {
	if escapeDigits == "" {
		escapeDigits = `""`
	}
	st, err := c.Send(newCommand("STREAM FILE", name, escapeDigits, strconv.Itoa(offset)))
	if err != nil {
		return "", err
	}
	if st.Code != 200 {
		return "", Not200(st)
	}
	if st.Result <= 0 {
		return "", nil
	}
	return string(rune(st.Result)), nil
}

// RecordOptions describes the options available when recording a
// channel to a file.
type RecordOptions struct {
	Format       string
	EscapeDigits string
	Timeout      time.Duration
	Silence      time.Duration
	Beep         bool
	Offset       int
}

// RecordFile records the channel's audio to a file.
func (c *Connection) RecordFile(name string, opts *RecordOptions) error {
	if opts == nil {
		opts = &RecordOptions{}
	}
	if opts.Format == "" {
		opts.Format = "wav"
	}
	if opts.EscapeDigits == "" {
		opts.EscapeDigits = "#"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}

	args := []string{name, opts.Format, opts.EscapeDigits, toMSec(opts.Timeout)}
	if opts.Offset > 0 {
		args = append(args, strconv.Itoa(opts.Offset))
	}
	if opts.Beep {
		args = append(args, "BEEP")
	}
	if opts.Silence > 0 {
		args = append(args, "s="+toSec(opts.Silence))
	}

	st, err := c.Send(newCommand("RECORD FILE", args...))
	if err != nil {
		return err
	}
	return expect200(st)
}

// Verbose logs the given message to Asterisk's verbose message system.
func (c *Connection) Verbose(msg string, level int) error {
	st, err := c.Send(newCommand("VERBOSE", msg, strconv.Itoa(level)))
	if err != nil {
		return err
	}
	return expect200(st)
}

// Verbosef logs a formatted verbose message at level 9.
func (c *Connection) Verbosef(format string, args ...interface{}) error {
	return c.Verbose(fmt.Sprintf(format, args...), 9)
}

// SayNumber plays the given number.
func (c *Connection) SayNumber(number, escapeDigits string) (string, error) {
	return c.sayCmd("SAY NUMBER", number, escapeDigits)
}

// SayDigits plays a digit string, annunciating each digit.
func (c *Connection) SayDigits(digits, escapeDigits string) (string, error) {
	return c.sayCmd("SAY DIGITS", digits, escapeDigits)
}

// SayAlpha plays a character string, annunciating each character.
func (c *Connection) SayAlpha(label, escapeDigits string) (string, error) {
	return c.sayCmd("SAY ALPHA", label, escapeDigits)
}

// SayPhonetic plays the given phrase phonetically.
func (c *Connection) SayPhonetic(phrase, escapeDigits string) (string, error) {
	return c.sayCmd("SAY PHONETIC", phrase, escapeDigits)
}

func (c *Connection) sayCmd(verb, value, escapeDigits string) (string, error) {
	if escapeDigits == "" {
		escapeDigits = `""`
	}
	st, err := c.Send(newCommand(verb, value, escapeDigits))
	if err != nil {
		return "", err
	}
	if st.Code != 200 {
		return "", Not200(st)
	}
	if st.Result <= 0 {
		return "", nil
	}
	return string(rune(st.Result)), nil
}

// SayDate plays a date.
func (c *Connection) SayDate(when time.Time, escapeDigits string) (string, error) {
	if escapeDigits == "" {
		escapeDigits = `""`
	}
	st, err := c.Send(newCommand("SAY DATE", toEpoch(when), escapeDigits))
	if err != nil {
		return "", err
	}
	if st.Code != 200 {
		return "", Not200(st)
	}
	if st.Result <= 0 {
		return "", nil
	}
	return string(rune(st.Result)), nil
}

// SayTime plays the time portion of the given timestamp.
func (c *Connection) SayTime(when time.Time, escapeDigits string) (string, error) {
	if escapeDigits == "" {
		escapeDigits = `""`
	}
	st, err := c.Send(newCommand("SAY TIME", toEpoch(when), escapeDigits))
	if err != nil {
		return "", err
	}
	if st.Code != 200 {
		return "", Not200(st)
	}
	if st.Result <= 0 {
		return "", nil
	}
	return string(rune(st.Result)), nil
}

// SayDateTime plays a date using the given format string; see
// voicemail.conf for the format syntax. Defaults to Asterisk's own
// default format when format is empty.
func (c *Connection) SayDateTime(when time.Time, escapeDigits, format string) (string, error) {
	zone, _ := when.Zone()
	if escapeDigits == "" {
		escapeDigits = `""`
	}
	if format == "" {
		format = "ABdY 'digits/at' IMp"
	}

	st, err := c.Send(newCommand("SAY DATETIME", toEpoch(when), escapeDigits, format, zone))
	if err != nil {
		return "", err
	}
	if st.Code != 200 {
		return "", Not200(st)
	}
	if st.Result <= 0 {
		return "", nil
	}
	return string(rune(st.Result)), nil
}

func expect200(st Status) error {
	if st.Code != 200 {
		return Not200(st)
	}
	return nil
}
