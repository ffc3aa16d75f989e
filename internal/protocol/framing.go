package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Delimiter terminates every framed document.
const Delimiter = '\n'

// WriteFrame marshals v and writes it as one delimited document.
func WriteFrame(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, Delimiter)
	_, err = w.Write(data)
	return err
}

// Accumulator implements the receive side of the framing contract: bytes are
// appended as they arrive, and the accumulated input counts as one complete
// document only once it ends in the delimiter. Two documents arriving
// back-to-back before a drain therefore surface as a single malformed
// document, not two valid ones; senders must not pipeline.
type Accumulator struct {
	buf bytes.Buffer
}

// Write appends a chunk of received bytes.
func (a *Accumulator) Write(p []byte) {
	a.buf.Write(p)
}

// Complete reports whether the accumulated input forms one full document and,
// if so, returns it without the trailing delimiter and resets the buffer.
func (a *Accumulator) Complete() ([]byte, bool) {
	b := a.buf.Bytes()
	if len(b) == 0 || b[len(b)-1] != Delimiter {
		return nil, false
	}
	doc := make([]byte, len(b)-1)
	copy(doc, b[:len(b)-1])
	a.buf.Reset()
	return doc, true
}

// Reset discards any partial input, used after a malformed document so the
// connection can carry a corrected follow-up request.
func (a *Accumulator) Reset() {
	a.buf.Reset()
}

// DecodeRequest parses and validates one request document.
func DecodeRequest(doc []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(doc, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// DecodeResponse parses one response document.
func DecodeResponse(doc []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(doc, &resp); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return resp, nil
}
