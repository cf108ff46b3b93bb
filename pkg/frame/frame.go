// Package frame implements the sentinel-delimited text framing used by the
// realtime broker: every data frame is 0x00 <utf8 bytes> 0xFF and the close
// signal is 0xFF 0x00 followed by CRLF. Callers must observe ownership
// contracts: EncodePooled returns a pooled []byte that the caller MUST return
// with ReleaseEncoded exactly once; Frame.Payload returned by Reader.ReadFrame
// is owned by the caller.
package frame

import (
	"bufio"
	"errors"
	"io"
	"sync"

	"github.com/Verboo/Verboo-Realtime-go/internal/config"
)

const (
	Start byte = 0x00 // leading sentinel of a text frame
	End   byte = 0xFF // trailing sentinel of a text frame
)

// Overhead is the number of framing bytes added around a text payload.
const Overhead = 2

// CloseSequence is written by the client to close the connection gracefully.
var CloseSequence = []byte{0xFF, 0x00, '\r', '\n'}

type FrameType uint8 // 1-byte frame type enum

const (
	FrameText  FrameType = 0x01 // utf8 text payload
	FrameClose FrameType = 0x02 // peer close sentinel
)

// Frame represents a single decoded unit read from the connection.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// Text returns the payload as a string.
func (f *Frame) Text() string { return string(f.Payload) }

var (
	ErrPayloadTooLarge = errors.New("frame payload exceeds maximum allowed size")
	ErrInvalidFrame    = errors.New("invalid frame sentinel")
	ErrClosed          = errors.New("frame: close sentinel received")
)

// encodePool provides reusable buffers for EncodePooled to reduce allocations.
var encodePool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 0, 1024) // room for one 800-byte part plus command prefix
	},
}

// init pre-warms the pool. sync.Pool may drop items during GC.
func init() {
	const warm = 16
	for i := 0; i < warm; i++ {
		encodePool.Put(make([]byte, 0, 1024))
	}
}

// EncodeText frames a string payload.
func EncodeText(text string) []byte {
	buf := make([]byte, 0, len(text)+Overhead)
	buf = append(buf, Start)
	buf = append(buf, text...)
	return append(buf, End)
}

// EncodePooled writes the framed payload into a pooled buffer and returns it.
// Ownership contract:
//   - The caller that receives the buffer becomes its owner and MUST call
//     ReleaseEncoded(buf) exactly once when done.
//   - The buffer MUST NOT be retained after release.
func EncodePooled(text string) ([]byte, error) {
	if int64(len(text)) > config.MaxFramePayloadSize() {
		return nil, ErrPayloadTooLarge
	}
	need := len(text) + Overhead

	b := encodePool.Get().([]byte)
	if cap(b) < need {
		b = make([]byte, 0, need)
	}
	b = b[:0]
	b = append(b, Start)
	b = append(b, text...)
	b = append(b, End)
	return b, nil
}

// ReleaseEncoded returns a pooled buffer back to the pool.
// It is noop-safe for heap buffers.
func ReleaseEncoded(b []byte) {
	if b == nil {
		return
	}
	encodePool.Put(b[:0]) // reset length, preserve capacity
}

// Reader decodes frames from a byte stream. It is not safe for concurrent use;
// the transport owns exactly one reader per connection.
type Reader struct {
	br  *bufio.Reader
	max int64
}

// NewReader wraps r. A max of zero or less uses config.MaxFramePayloadSize.
func NewReader(r io.Reader, max int64) *Reader {
	if max <= 0 {
		max = config.MaxFramePayloadSize()
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{br: br, max: max}
}

// ReadFrame blocks until a full frame is available. A close sentinel yields a
// FrameClose frame; any other leading byte is ErrInvalidFrame.
func (r *Reader) ReadFrame() (*Frame, error) {
	lead, err := r.br.ReadByte()
	if err != nil {
		return nil, err
	}
	switch lead {
	case Start:
		payload, err := r.readUntilEnd()
		if err != nil {
			return nil, err
		}
		return &Frame{Type: FrameText, Payload: payload}, nil
	case End:
		next, err := r.br.ReadByte()
		if err != nil {
			return nil, err
		}
		if next != 0x00 {
			return nil, ErrInvalidFrame
		}
		return &Frame{Type: FrameClose}, nil
	default:
		return nil, ErrInvalidFrame
	}
}

func (r *Reader) readUntilEnd() ([]byte, error) {
	var payload []byte
	for {
		chunk, err := r.br.ReadSlice(End)
		if int64(len(payload)+len(chunk)) > r.max+1 {
			return nil, ErrPayloadTooLarge
		}
		payload = append(payload, chunk...)
		if err == nil {
			return payload[:len(payload)-1], nil // drop trailing sentinel
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
	}
}
