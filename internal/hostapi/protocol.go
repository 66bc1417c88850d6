package hostapi

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pipeforge/pipeforged/internal/errs"
)

// Message kinds understood by the host API (§4).
const (
	KindArguments   = "arguments"
	KindMkdtemp     = "store.mkdtemp"
	KindSource      = "store.source"
	KindMetadata    = "metadata"
	KindLog         = "log"
	KindException   = "exception"
)

// Envelope is the wire shape of every message in either direction.
type Envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// maxFrameSize bounds a single message body, guarding against a
// misbehaving stage program claiming an enormous length prefix.
const maxFrameSize = 64 << 20

// writeFrame writes a length-prefixed Envelope to w.
func writeFrame(w io.Writer, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errs.Wrap(ErrProtocol, err)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// readFrame reads a single length-prefixed Envelope from r.
func readFrame(r io.Reader) (Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Envelope{}, err
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return Envelope{}, errs.Wrapf(ErrProtocol, "frame of %d bytes exceeds limit", n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Envelope{}, err
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, errs.Wrap(ErrProtocol, err)
	}
	return env, nil
}
