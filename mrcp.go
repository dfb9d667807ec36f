package fastagi

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// RecognitionResult describes the result of an MRCP speech recognition
// action.
type RecognitionResult struct {

	// Status indicates the value of RECOG_STATUS, which is one of "OK", "ERROR", or "INTERRUPTED", which indicates whether the recognition process completed.
	//
	//  "OK" - the recognition executed properly
	//
	//  "ERROR" - the recognition failed to execute
	//
	//  "INTERRUPTED" - the call ended before the recognition could complete its execution
	//
	Status string

	// Cause indicates the value of RECOG_COMPLETION_CAUSE, which indicates whether speech was recognized.
	//
	// Possible values are:
	//
	// 0 - Success; speech was recognized
	//
	// 1 - No Match; speech was detected but it did not match anything in the grammar
	//
	// 2 - No Input; no speech was detected
	//
	Cause int

	// Result is the value of RECOG_RESULT, which contains the NLSML result (unparsed string) received from the MRCP server.
	Result string
}

// RecognitionInterpretation describes a specific interpretation of
// speech input.
type RecognitionInterpretation struct {

	// Confidence indicates how sure the MRCP server's engine was that the result was properly recognized.  It is a value from 0-100, with the highest value indicating the most confidence.
	Confidence int

	// Input is the textual representation of the recognized speech
	Input string

	// Grammar indicates the grammar or recognition rule which was matched
	Grammar string
}

// getRecognitionResult retrieves the set of channel variables that
// comprise the result of a speech recognition MRCP session. combo
// indicates whether the process was the SynthAndRecog combo
// application, which stores the status under a different variable
// name than the singular MRCPRecog.
func getRecognitionResult(c *Connection, combo bool) (res *RecognitionResult, err error) {
	var cause string
	res = new(RecognitionResult)

	statusVar := "RECOGSTATUS"
	if combo {
		statusVar = "RECOG_STATUS"
	}

	if res.Status, err = c.GetVariable(statusVar); err != nil {
		return res, errors.Wrap(err, "failed to retrieve status")
	}
	if cause, err = c.GetVariable("RECOG_COMPLETION_CAUSE"); err != nil {
		return res, errors.Wrap(err, "failed to retrieve cause")
	}
	if res.Cause, err = strconv.Atoi(cause); err != nil {
		return res, errors.Wrapf(err, "failed to parse cause (%s) as an integer", cause)
	}
	if res.Result, err = c.GetVariable("RECOG_RESULT"); err != nil {
		return res, errors.Wrap(err, "failed to retrieve result")
	}

	return res, nil
}

// SynthResult describes the result of an MRCP Synthesis operation.
type SynthResult struct {

	// Status indicates whether the operation completed.
	//
	// Valid values are:
	//
	//   - "OK" : the synthesis operation succeeded
	//
	//   - "ERROR" : the synthesis operation failed
	//
	//   - "INTERRUPTED" : the channel disappeared during the synthesis operation
	//
	Status string

	// Cause is a numeric code indicating the reason for the status
	//
	// Known values are:
	//
	//   - 0 : Normal
	//
	//   - 1 : Barge-In occurred
	//
	//   - 2 : Parse failure
	//
	Cause int
}

// MRCPSynth synthesizes speech for a prompt via MRCP (requires the
// UniMRCP app and resource to be compiled and loaded in Asterisk).
func (c *Connection) MRCPSynth(prompt string, opts string) (res *SynthResult, err error) {
	var cause string
	res = new(SynthResult)

	ret, err := c.Exec("MRCPSynth", prompt, opts)
	if err != nil {
		return res, err
	}
	if ret == "-2" {
		return res, errors.New("MRCP applications not loaded")
	}

	if res.Status, err = c.GetVariable("SYNTHSTATUS"); err != nil {
		return res, errors.Wrap(err, "failed to retrieve status")
	}
	if cause, err = c.GetVariable("SYNTH_COMPLETION_CAUSE"); err != nil {
		return res, errors.Wrap(err, "failed to retrieve cause")
	}
	if res.Cause, err = strconv.Atoi(cause); err != nil {
		return res, errors.Wrapf(err, "failed to parse cause (%s) as an integer", cause)
	}

	return res, nil
}

// MRCPRecog listens for speech and optionally plays a prompt (requires
// the UniMRCP app and resource to be compiled and loaded in Asterisk).
func (c *Connection) MRCPRecog(grammar string, opts string) (*RecognitionResult, error) {
	ret, err := c.Exec("MRCPRecog", grammar, opts)
	if err != nil {
		return nil, err
	}
	if ret == "-2" {
		return nil, errors.New("MRCP applications not loaded")
	}

	return getRecognitionResult(c, false)
}

// SynthAndRecog plays a synthesized prompt and waits for speech to be
// recognized (requires the UniMRCP app and resource to be compiled and
// loaded in Asterisk).
func (c *Connection) SynthAndRecog(prompt string, grammar string, opts string) (*RecognitionResult, error) {
	execOpts := fmt.Sprintf(`"%s",%s,%s`, prompt, grammar, opts)
	ret, err := c.Exec("SynthAndRecog", execOpts)
	if err != nil {
		return nil, err
	}
	if ret == "-2" {
		return nil, errors.New("MRCP applications not loaded")
	}

	return getRecognitionResult(c, true)
}

// RecognitionInterpretation returns the speech interpretation from the
// last MRCP speech recognition process. index is based on the set of
// results ordered by decreasing confidence: index 0 is the best match.
func (c *Connection) RecognitionInterpretation(index int) (ret *RecognitionInterpretation, err error) {
	ret = new(RecognitionInterpretation)

	if ret.Input, err = c.RecognitionInput(index); err != nil {
		return ret, err
	}
	if ret.Confidence, err = c.RecognitionConfidence(index); err != nil {
		return ret, err
	}
	if ret.Grammar, err = c.RecognitionGrammar(index); err != nil {
		return ret, err
	}
	return ret, nil
}

// RecognitionInput returns the detected input from the last MRCP
// speech recognition process.
func (c *Connection) RecognitionInput(index int) (string, error) {
	return c.GetVariable(fmt.Sprintf("RECOG_INPUT(%d)", index))
}

// RecognitionConfidence returns the confidence level (0-100, with 100
// being best) from the last MRCP speech recognition process.
func (c *Connection) RecognitionConfidence(index int) (int, error) {
	out, err := c.GetVariable(fmt.Sprintf("RECOG_CONFIDENCE(%d)", index))
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(out)
}

// RecognitionGrammar returns the grammar that was matched from the
// last MRCP speech recognition process.
func (c *Connection) RecognitionGrammar(index int) (string, error) {
	return c.GetVariable(fmt.Sprintf("RECOG_GRAMMAR(%d)", index))
}
