package rules

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxEventSize = 1 << 20

// ErrEventTooLarge reports a line longer than the 1 MiB event limit. The
// line is skipped and decoding continues with the next one.
var ErrEventTooLarge = errors.New("event exceeds 1 MiB")

// ReadError is returned when the event stream itself fails. The Decoder
// reports it once and then behaves as if the input had ended.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read events: %v", e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Decoder reads newline-delimited JSON events. Blank lines are skipped.
type Decoder struct {
	r    *bufio.Reader
	line int
	done bool
}

// NewDecoder returns a Decoder reading events from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next decodes the next event. It returns io.EOF when the input is
// exhausted. Each event must be a JSON object; a bad line yields an error
// naming it and the following call moves on to the next line.
func (d *Decoder) Next() (Event, error) {
	for !d.done {
		raw, err := d.readLine()
		switch {
		case errors.Is(err, io.EOF):
			d.done = true
			return nil, io.EOF
		case errors.Is(err, ErrEventTooLarge):
			d.line++
			return nil, fmt.Errorf("line %d: %w", d.line, err)
		case err != nil:
			d.done = true
			return nil, &ReadError{Err: err}
		}

		d.line++
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", d.line, err)
		}
		if ev == nil {
			return nil, fmt.Errorf("line %d: not a JSON object", d.line)
		}
		return ev, nil
	}
	return nil, io.EOF
}

// readLine returns the next line, terminator included. An oversized line is
// consumed to its end and reported as ErrEventTooLarge.
func (d *Decoder) readLine() ([]byte, error) {
	var line []byte
	tooLarge := false
	for {
		chunk, err := d.r.ReadSlice('\n')
		if !tooLarge {
			if len(line)+len(chunk) > maxEventSize+1 {
				tooLarge, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err != nil && !errors.Is(err, io.EOF):
			return nil, err
		case tooLarge:
			return nil, ErrEventTooLarge
		case err != nil && len(line) == 0:
			return nil, io.EOF
		}
		return line, nil
	}
}

// Marshal encodes v as compact JSON.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
