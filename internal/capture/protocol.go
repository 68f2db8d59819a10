package capture

import "fmt"

// CancelReason is the reason carried by a cancel event.
type CancelReason uint32

// Cancel reasons defined by zwlr_export_dmabuf_frame_v1.
const (
	CancelTemporary CancelReason = 0
	CancelPermanent CancelReason = 1
	CancelResizing  CancelReason = 2
)

// Permanent reports whether retrying on the same output is pointless.
func (r CancelReason) Permanent() bool {
	return r == CancelPermanent
}

func (r CancelReason) String() string {
	switch r {
	case CancelTemporary:
		return "temporary"
	case CancelPermanent:
		return "permanent"
	case CancelResizing:
		return "resizing"
	default:
		return fmt.Sprintf("reason(%d)", uint32(r))
	}
}

// Event is a protocol event addressed to an in-flight capture attempt.
type Event interface {
	event()
}

// MetadataEvent describes the frame about to be delivered.
type MetadataEvent struct {
	Width       uint32
	Height      uint32
	OffsetX     uint32
	OffsetY     uint32
	BufferFlags uint32
	Flags       uint32
	Format      uint32
	Modifier    uint64
	Objects     uint32
}

// ObjectEvent hands over one buffer object. Handle is an owned descriptor.
type ObjectEvent struct {
	Index      uint32
	Handle     int
	Size       uint32
	Offset     uint32
	Stride     uint32
	PlaneIndex uint32
}

// ReadyEvent signals that the frame is complete and may be read.
type ReadyEvent struct {
	Sec  uint64
	Nsec uint32
}

// CancelEvent signals that the attempt was abandoned by the compositor.
type CancelEvent struct {
	Reason CancelReason
}

// UnknownEvent carries an opcode the client does not understand, or a payload
// too short for its opcode. Handle is -1 unless a descriptor came with it.
type UnknownEvent struct {
	Opcode uint16
	Handle int
	Reason string
}

func (MetadataEvent) event() {}
func (ObjectEvent) event()   {}
func (ReadyEvent) event()    {}
func (CancelEvent) event()   {}
func (UnknownEvent) event()  {}

// Handler receives the events of one capture attempt.
type Handler func(Event)

// Protocol is the transport under a capture Session.
//
// Capture issues a request for the next frame and routes that attempt's events
// to h. Dispatch blocks until at least one event has been read and delivered.
type Protocol interface {
	Capture(h Handler) (Attempt, error)
	Dispatch() error
	Close() error
}

// Attempt is the protocol-side resource of one capture request.
type Attempt interface {
	Release() error
}
