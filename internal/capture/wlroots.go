package capture

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rajveermalviya/go-wayland/wayland/client"
)

const (
	exportDmabufManagerInterface = "zwlr_export_dmabuf_manager_v1"
	outputInterface              = "wl_output"

	// wl_output v4 adds the name event used to pick an output by name.
	maxOutputVersion = 4
)

// zwlr_export_dmabuf_manager_v1 requests.
const (
	managerCaptureOutput = 0
	managerDestroy       = 1
)

// zwlr_export_dmabuf_frame_v1 events and requests.
const (
	frameEventFrame  = 0
	frameEventObject = 1
	frameEventReady  = 2
	frameEventCancel = 3

	frameDestroy = 0
)

// Payload sizes in 32-bit words, descriptors excluded.
var frameEventWords = map[uint16]int{
	frameEventFrame:  10,
	frameEventObject: 5,
	frameEventReady:  3,
	frameEventCancel: 1,
}

// WlrootsConfig selects the output and cursor handling.
type WlrootsConfig struct {
	// Output is the wl_output name to capture. Empty selects the first output.
	Output        string
	OverlayCursor bool
}

// WlrootsProtocol implements Protocol over a Wayland connection.
type WlrootsProtocol struct {
	display *client.Display
	ctx     *client.Context

	manager       *exportDmabufManager
	output        *client.Output
	outputName    string
	overlayCursor bool

	interrupted atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

type outputCandidate struct {
	output *client.Output
	name   string
}

// DialWlroots connects to the compositor named by WAYLAND_DISPLAY, binds the
// export-dmabuf manager and the configured output.
func DialWlroots(cfg WlrootsConfig) (*WlrootsProtocol, error) {
	display, err := client.Connect("")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	p := &WlrootsProtocol{
		display:       display,
		ctx:           display.Context(),
		overlayCursor: cfg.OverlayCursor,
	}

	if err := p.bind(cfg.Output); err != nil {
		_ = p.ctx.Close()
		return nil, err
	}
	return p, nil
}

func (p *WlrootsProtocol) bind(wantOutput string) error {
	registry, err := p.display.GetRegistry()
	if err != nil {
		return fmt.Errorf("getting registry: %w", err)
	}

	var (
		outputs []*outputCandidate
		bindErr error
	)
	registry.SetGlobalHandler(func(e client.RegistryGlobalEvent) {
		switch e.Interface {
		case exportDmabufManagerInterface:
			m := &exportDmabufManager{}
			p.ctx.Register(m)
			if err := registry.Bind(e.Name, e.Interface, 1, m); err != nil {
				bindErr = fmt.Errorf("binding %s: %w", e.Interface, err)
				return
			}
			p.manager = m

		case outputInterface:
			c := &outputCandidate{output: client.NewOutput(p.ctx)}
			c.output.SetNameHandler(func(ev client.OutputNameEvent) {
				c.name = ev.Name
			})
			if err := registry.Bind(e.Name, e.Interface, min(e.Version, maxOutputVersion), c.output); err != nil {
				bindErr = fmt.Errorf("binding %s: %w", e.Interface, err)
				return
			}
			outputs = append(outputs, c)
		}
	})

	// First roundtrip collects globals, the second their initial events.
	for i := 0; i < 2; i++ {
		if err := p.roundtrip(); err != nil {
			return fmt.Errorf("registry roundtrip: %w", err)
		}
	}
	if bindErr != nil {
		return bindErr
	}
	if p.manager == nil {
		return ErrUnsupported
	}

	chosen := selectOutput(outputs, wantOutput)
	if chosen == nil {
		return fmt.Errorf("%w: %q", ErrOutputNotFound, wantOutput)
	}
	p.output = chosen.output
	p.outputName = chosen.name

	for _, c := range outputs {
		if c != chosen {
			_ = c.output.Release()
		}
	}
	return nil
}

func selectOutput(outputs []*outputCandidate, name string) *outputCandidate {
	if len(outputs) == 0 {
		return nil
	}
	if name == "" {
		return outputs[0]
	}
	for _, c := range outputs {
		if c.name == name {
			return c
		}
	}
	return nil
}

// roundtrip blocks until the compositor has processed every request sent so far.
func (p *WlrootsProtocol) roundtrip() error {
	cb, err := p.display.Sync()
	if err != nil {
		return err
	}
	defer cb.Destroy() //nolint:errcheck // local unregister only

	done := false
	cb.SetDoneHandler(func(client.CallbackDoneEvent) {
		done = true
	})
	for !done {
		if err := p.ctx.Dispatch(); err != nil {
			return err
		}
	}
	return nil
}

// OutputName returns the name of the bound output, if the compositor sent one.
func (p *WlrootsProtocol) OutputName() string {
	return p.outputName
}

// Capture implements Protocol.
func (p *WlrootsProtocol) Capture(h Handler) (Attempt, error) {
	f := &exportDmabufFrame{handler: h}
	p.ctx.Register(f)
	if err := p.manager.captureOutput(f, p.overlayCursor, p.output); err != nil {
		p.ctx.Unregister(f)
		return nil, fmt.Errorf("capture_output: %w", err)
	}
	return f, nil
}

// Dispatch implements Protocol.
func (p *WlrootsProtocol) Dispatch() error {
	return p.ctx.Dispatch()
}

// interrupt unblocks a pending Dispatch by closing the connection. It is the
// only method safe to call from another goroutine.
func (p *WlrootsProtocol) interrupt() {
	if p.interrupted.CompareAndSwap(false, true) {
		_ = p.ctx.Close()
	}
}

// Close destroys the manager, releases the output and closes the connection.
func (p *WlrootsProtocol) Close() error {
	p.closeOnce.Do(func() {
		if p.interrupted.Load() {
			return
		}
		if p.manager != nil {
			_ = p.manager.destroy()
		}
		if p.output != nil {
			_ = p.output.Release()
		}
		p.closeErr = p.ctx.Close()
	})
	return p.closeErr
}

var (
	_ client.Dispatcher = (*exportDmabufManager)(nil)
	_ client.Dispatcher = (*exportDmabufFrame)(nil)
)

// exportDmabufManager is the client side of zwlr_export_dmabuf_manager_v1.
type exportDmabufManager struct {
	client.BaseProxy
}

// Dispatch implements client.Dispatcher; the manager has no events.
func (m *exportDmabufManager) Dispatch(uint32, int, []byte) {}

func (m *exportDmabufManager) captureOutput(f *exportDmabufFrame, overlayCursor bool, output *client.Output) error {
	var cursor uint32
	if overlayCursor {
		cursor = 1
	}
	msg := encodeRequest(m.ID(), managerCaptureOutput, f.ID(), cursor, output.ID())
	return m.Context().WriteMsg(msg, nil)
}

func (m *exportDmabufManager) destroy() error {
	defer m.Context().Unregister(m)
	return m.Context().WriteMsg(encodeRequest(m.ID(), managerDestroy), nil)
}

// exportDmabufFrame is the client side of zwlr_export_dmabuf_frame_v1.
type exportDmabufFrame struct {
	client.BaseProxy
	handler   Handler
	destroyed bool
}

// Dispatch implements client.Dispatcher.
func (f *exportDmabufFrame) Dispatch(opcode uint32, fd int, data []byte) {
	if f.handler != nil {
		f.handler(decodeFrameEvent(uint16(opcode), fd, data))
	}
}

// Release sends destroy for this frame object. Later calls are no-ops.
func (f *exportDmabufFrame) Release() error {
	if f.destroyed {
		return nil
	}
	f.destroyed = true
	defer f.Context().Unregister(f)
	return f.Context().WriteMsg(encodeRequest(f.ID(), frameDestroy), nil)
}

// encodeRequest builds a wire message whose arguments are all 32-bit words.
func encodeRequest(sender uint32, opcode uint16, args ...uint32) []byte {
	size := 8 + 4*len(args)
	buf := make([]byte, size)
	binary.NativeEndian.PutUint32(buf[0:], sender)
	binary.NativeEndian.PutUint32(buf[4:], uint32(size)<<16|uint32(opcode))
	for i, a := range args {
		binary.NativeEndian.PutUint32(buf[8+4*i:], a)
	}
	return buf
}

// decodeFrameEvent turns a raw frame event into an Event. The payload is
// copied out, so data may be reused by the caller afterwards.
func decodeFrameEvent(opcode uint16, fd int, data []byte) Event {
	words, known := frameEventWords[opcode]
	if !known {
		return UnknownEvent{Opcode: opcode, Handle: fd, Reason: "unknown opcode"}
	}
	if len(data) < words*4 {
		return UnknownEvent{Opcode: opcode, Handle: fd, Reason: fmt.Sprintf("payload %d bytes, want %d", len(data), words*4)}
	}
	u := func(i int) uint32 {
		return binary.NativeEndian.Uint32(data[i*4:])
	}

	switch opcode {
	case frameEventFrame:
		return MetadataEvent{
			Width:       u(0),
			Height:      u(1),
			OffsetX:     u(2),
			OffsetY:     u(3),
			BufferFlags: u(4),
			Flags:       u(5),
			Format:      u(6),
			Modifier:    uint64(u(7))<<32 | uint64(u(8)),
			Objects:     u(9),
		}
	case frameEventObject:
		return ObjectEvent{
			Index:      u(0),
			Handle:     fd,
			Size:       u(1),
			Offset:     u(2),
			Stride:     u(3),
			PlaneIndex: u(4),
		}
	case frameEventReady:
		return ReadyEvent{
			Sec:  uint64(u(0))<<32 | uint64(u(1)),
			Nsec: u(2),
		}
	default:
		return CancelEvent{Reason: CancelReason(u(0))}
	}
}
