package hal

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	wgpuhal "github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendertask"
)

// StreamBufferSize is the size of each stream buffer in bytes.
const StreamBufferSize = 64 << 10

// Poll intervals for client fence waits.
const (
	minPollInterval = 50 * time.Microsecond
	maxPollInterval = 2 * time.Millisecond
)

var (
	// ErrClosed is returned by calls on a closed device.
	ErrClosed = errors.New("hal: device closed")

	// ErrUnknownHandle is returned for a handle the device did not create.
	ErrUnknownHandle = errors.New("hal: unknown handle")

	// ErrNoAdapter is returned by Open when the backend exposes no adapter.
	ErrNoAdapter = errors.New("hal: no adapter")

	errNoVertexArrays = errors.New("hal: vertex array objects not supported")
)

type framebuffer struct {
	color rendertask.TextureHandle
}

type renderTarget struct {
	tex           wgpuhal.Texture
	width, height uint32
}

// Device is a rendertask.Device on a wgpu HAL device and queue.
//
// Fences are queue submission indices: CreateFence submits an empty batch
// and a fence is signalled once the queue reports that index completed.
// The queue executes submissions in order, so ServerWaitFence needs no
// GPU-side wait. All queue access goes through mu, which makes the fence
// methods safe off the runner goroutine.
type Device struct {
	label    string
	device   wgpuhal.Device
	queue    wgpuhal.Queue
	instance wgpuhal.Instance // set when the device was opened by Open
	external bool

	mu      sync.Mutex
	closed  bool
	current bool
	nextID  uint32

	fences       map[rendertask.FenceHandle]uint64
	buffers      map[rendertask.BufferHandle]wgpuhal.Buffer
	framebuffers map[rendertask.FramebufferHandle]*framebuffer
	targets      map[rendertask.TextureHandle]*renderTarget

	// Default framebuffer color target, sized to the last presented drawable.
	backbuffer rendertask.TextureHandle

	bound      rendertask.FramebufferHandle
	clearColor gputypes.Color
	viewport   rendertask.Viewport
	projection rendertask.Mat4
	attribs    uint32
	pending    int
}

// NewDevice wraps an existing HAL device and queue. The caller keeps
// ownership of both; Close releases only the resources this device created.
func NewDevice(device wgpuhal.Device, queue wgpuhal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("hal: nil device or queue")
	}
	d := newDevice(device, queue)
	d.external = true
	return d, nil
}

// FromProvider uses the HAL device shared by a gpucontext provider, such as
// a gogpu window. The provider must implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue.
func FromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("hal: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(wgpuhal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("hal: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(wgpuhal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("hal: provider HalQueue is not hal.Queue")
	}
	return NewDevice(device, queue)
}

// Open creates an instance of the registered HAL backend and opens a device
// on its first adapter. Close destroys the device and the instance.
func Open(variant gputypes.Backend) (*Device, error) {
	b, ok := wgpuhal.GetBackend(variant)
	if !ok {
		return nil, fmt.Errorf("hal: backend %v not registered", variant)
	}
	instance, err := b.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("hal: create %v instance: %w", variant, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: %v", ErrNoAdapter, variant)
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("hal: open %s: %w", adapters[0].Info.Name, err)
	}

	d := newDevice(open.Device, open.Queue)
	d.instance = instance
	d.label = fmt.Sprintf("%v/%s", variant, adapters[0].Info.Name)
	rendertask.Logger().Info("hal: device opened", "backend", variant, "adapter", adapters[0].Info.Name)
	return d, nil
}

func newDevice(device wgpuhal.Device, queue wgpuhal.Queue) *Device {
	return &Device{
		label:        "hal",
		device:       device,
		queue:        queue,
		fences:       make(map[rendertask.FenceHandle]uint64),
		buffers:      make(map[rendertask.BufferHandle]wgpuhal.Buffer),
		framebuffers: make(map[rendertask.FramebufferHandle]*framebuffer),
		targets:      make(map[rendertask.TextureHandle]*renderTarget),
		projection:   rendertask.IdentityMat4(),
	}
}

// Label returns "<backend>/<adapter>" for opened devices and "hal" otherwise.
func (d *Device) Label() string { return d.label }

// Capabilities implements rendertask.Device.
func (d *Device) Capabilities() rendertask.Capabilities {
	return rendertask.Capabilities{
		SyncFences:                 true,
		NoFlushCrossThreadWait:     true,
		StreamBuffers:              true,
		ExplicitDefaultFramebuffer: true,
	}
}

// MakeCurrent implements rendertask.Device. HAL devices are not bound to a
// thread; the call only marks the device in use.
func (d *Device) MakeCurrent() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.current {
		return fmt.Errorf("hal: device already current")
	}
	d.current = true
	return nil
}

// ReleaseCurrent implements rendertask.Device. It waits for the queue to go
// idle so no submitted work outlives the runner.
func (d *Device) ReleaseCurrent() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = false
	if d.closed {
		return nil
	}
	return d.device.WaitIdle()
}

func (d *Device) allocID() uint32 {
	d.nextID++
	return d.nextID
}

// CreateFence implements rendertask.Device.
func (d *Device) CreateFence() (rendertask.FenceHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	idx, err := d.submitLocked()
	if err != nil {
		return 0, fmt.Errorf("hal: fence submit: %w", err)
	}
	h := rendertask.FenceHandle(d.allocID())
	d.fences[h] = idx
	return h, nil
}

// submitLocked submits an empty batch and returns its index. Caller holds mu.
func (d *Device) submitLocked() (uint64, error) {
	idx, err := d.queue.Submit(nil)
	if err != nil {
		return 0, err
	}
	d.pending = 0
	return idx, nil
}

func (d *Device) fenceIndex(h rendertask.FenceHandle) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx, ok := d.fences[h]
	return idx, ok
}

func (d *Device) completed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.PollCompleted()
}

// ClientWaitFence implements rendertask.Device. A negative timeout waits
// for the whole device to go idle.
func (d *Device) ClientWaitFence(h rendertask.FenceHandle, flags rendertask.WaitFlags, timeout time.Duration) (bool, error) {
	idx, ok := d.fenceIndex(h)
	if !ok {
		return false, fmt.Errorf("%w: fence %d", ErrUnknownHandle, h)
	}
	if flags&rendertask.WaitFlushCommands != 0 {
		if err := d.Flush(); err != nil {
			return false, err
		}
	}
	if d.completed() >= idx {
		return true, nil
	}
	if timeout < 0 {
		if err := d.device.WaitIdle(); err != nil {
			return false, fmt.Errorf("hal: wait idle: %w", err)
		}
		return true, nil
	}

	deadline := time.Now().Add(timeout)
	interval := minPollInterval
	for {
		if d.completed() >= idx {
			return true, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		time.Sleep(min(interval, remaining))
		interval = min(interval*2, maxPollInterval)
	}
}

// ServerWaitFence implements rendertask.Device. Submissions on a HAL queue
// execute in order, so later work already follows the fence.
func (d *Device) ServerWaitFence(h rendertask.FenceHandle) error {
	if _, ok := d.fenceIndex(h); !ok {
		return fmt.Errorf("%w: fence %d", ErrUnknownHandle, h)
	}
	return nil
}

// DeleteFence implements rendertask.Device.
func (d *Device) DeleteFence(h rendertask.FenceHandle) {
	d.mu.Lock()
	delete(d.fences, h)
	d.mu.Unlock()
}

// CreateBuffers implements rendertask.Device. Each buffer is a
// StreamBufferSize vertex buffer writable from the queue.
func (d *Device) CreateBuffers(n int) ([]rendertask.BufferHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	handles := make([]rendertask.BufferHandle, 0, n)
	for i := 0; i < n; i++ {
		buf, err := d.device.CreateBuffer(&wgpuhal.BufferDescriptor{
			Label: fmt.Sprintf("rendertask_stream_%d", i),
			Size:  StreamBufferSize,
			Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			for _, h := range handles {
				d.device.DestroyBuffer(d.buffers[h])
				delete(d.buffers, h)
			}
			return nil, fmt.Errorf("hal: create stream buffer %d: %w", i, err)
		}
		h := rendertask.BufferHandle(d.allocID())
		d.buffers[h] = buf
		handles = append(handles, h)
	}
	return handles, nil
}

// DeleteBuffers implements rendertask.Device.
func (d *Device) DeleteBuffers(bufs []rendertask.BufferHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range bufs {
		if buf, ok := d.buffers[h]; ok {
			d.device.DestroyBuffer(buf)
			delete(d.buffers, h)
		}
	}
}

// WriteBuffer uploads data into a stream buffer.
func (d *Device) WriteBuffer(h rendertask.BufferHandle, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[h]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrUnknownHandle, h)
	}
	if offset+uint64(len(data)) > StreamBufferSize {
		return fmt.Errorf("hal: write of %d bytes at %d overflows buffer", len(data), offset)
	}
	if err := d.queue.WriteBuffer(buf, offset, data); err != nil {
		return fmt.Errorf("hal: write buffer: %w", err)
	}
	d.pending++
	return nil
}

// CreateVertexArray implements rendertask.Device. HAL has no vertex array
// objects; the runner never calls this since the capability is unset.
func (d *Device) CreateVertexArray() (rendertask.VertexArrayHandle, error) {
	return 0, errNoVertexArrays
}

// BindVertexArray implements rendertask.Device.
func (d *Device) BindVertexArray(rendertask.VertexArrayHandle) {}

// DeleteVertexArray implements rendertask.Device.
func (d *Device) DeleteVertexArray(rendertask.VertexArrayHandle) {}

// CreateFramebuffer implements rendertask.Device.
func (d *Device) CreateFramebuffer() (rendertask.FramebufferHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	h := rendertask.FramebufferHandle(d.allocID())
	d.framebuffers[h] = &framebuffer{}
	return h, nil
}

// BindFramebuffer implements rendertask.Device. A zero tex keeps the current
// attachment.
func (d *Device) BindFramebuffer(fb rendertask.FramebufferHandle, tex rendertask.TextureHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bound = fb
	if f, ok := d.framebuffers[fb]; ok && tex != 0 {
		f.color = tex
	}
}

// DeleteFramebuffer implements rendertask.Device.
func (d *Device) DeleteFramebuffer(fb rendertask.FramebufferHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.framebuffers, fb)
	if d.bound == fb {
		d.bound = 0
	}
}

// CreateRenderTarget creates a BGRA8 texture that can be attached to a
// framebuffer with BindFramebuffer.
func (d *Device) CreateRenderTarget(width, height int) (rendertask.TextureHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	return d.createTargetLocked("rendertask_target", width, height)
}

func (d *Device) createTargetLocked(label string, width, height int) (rendertask.TextureHandle, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("hal: invalid render target size %dx%d", width, height)
	}
	tex, err := d.device.CreateTexture(&wgpuhal.TextureDescriptor{
		Label: label,
		Size: wgpuhal.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return 0, fmt.Errorf("hal: create render target: %w", err)
	}
	h := rendertask.TextureHandle(d.allocID())
	d.targets[h] = &renderTarget{tex: tex, width: uint32(width), height: uint32(height)}
	return h, nil
}

// DestroyRenderTarget releases a texture made by CreateRenderTarget and
// detaches it from every framebuffer.
func (d *Device) DestroyRenderTarget(h rendertask.TextureHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyTargetLocked(h)
}

func (d *Device) destroyTargetLocked(h rendertask.TextureHandle) {
	t, ok := d.targets[h]
	if !ok {
		return
	}
	d.device.DestroyTexture(t.tex)
	delete(d.targets, h)
	for _, f := range d.framebuffers {
		if f.color == h {
			f.color = 0
		}
	}
}

// EnableVertexAttrib implements rendertask.Device.
func (d *Device) EnableVertexAttrib(index uint32) {
	d.mu.Lock()
	d.attribs |= 1 << index
	d.mu.Unlock()
}

// SetClearColor implements rendertask.Device.
func (d *Device) SetClearColor(c gputypes.Color) {
	d.mu.Lock()
	d.clearColor = c
	d.mu.Unlock()
}

// Clear implements rendertask.Device.
func (d *Device) Clear() {
	d.mu.Lock()
	d.pending++
	d.mu.Unlock()
}

// SetViewport implements rendertask.Device.
func (d *Device) SetViewport(v rendertask.Viewport) {
	d.mu.Lock()
	d.viewport = v
	d.mu.Unlock()
}

// SetProjection implements rendertask.Device.
func (d *Device) SetProjection(m rendertask.Mat4) {
	d.mu.Lock()
	d.projection = m
	d.mu.Unlock()
}

// Present implements rendertask.Device. It sizes the default framebuffer's
// color target to the drawable and submits the frame. Surface presentation
// belongs to the window that owns the surface.
func (d *Device) Present(dr rendertask.Drawable) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if dr != nil {
		w, h := dr.Size()
		if err := d.resizeBackbufferLocked(w, h); err != nil {
			return err
		}
	}
	if _, err := d.submitLocked(); err != nil {
		return fmt.Errorf("hal: present submit: %w", err)
	}
	return nil
}

func (d *Device) resizeBackbufferLocked(w, h int) error {
	if t, ok := d.targets[d.backbuffer]; ok {
		if t.width == uint32(w) && t.height == uint32(h) {
			return nil
		}
		d.destroyTargetLocked(d.backbuffer)
		d.backbuffer = 0
	}
	if w <= 0 || h <= 0 {
		return nil
	}
	tex, err := d.createTargetLocked("rendertask_backbuffer", w, h)
	if err != nil {
		return err
	}
	d.backbuffer = tex
	return nil
}

// Flush implements rendertask.Device.
func (d *Device) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if _, err := d.submitLocked(); err != nil {
		return fmt.Errorf("hal: flush: %w", err)
	}
	return nil
}

// ReleaseShaderCompiler implements rendertask.Device.
func (d *Device) ReleaseShaderCompiler() {}

// Backbuffer returns the default framebuffer's color target size, or zeros
// before the first Present.
func (d *Device) Backbuffer() (width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.targets[d.backbuffer]; ok {
		return int(t.width), int(t.height)
	}
	return 0, 0
}

// LiveFences returns the number of fences not yet deleted.
func (d *Device) LiveFences() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fences)
}

// LiveBuffers returns the number of stream buffers not yet deleted.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

// Close releases every resource the device created. Devices from Open also
// destroy the HAL device and instance. Close is idempotent.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true

	if err := d.device.WaitIdle(); err != nil {
		rendertask.Logger().Warn("hal: wait idle on close", "err", err)
	}
	for h, buf := range d.buffers {
		d.device.DestroyBuffer(buf)
		delete(d.buffers, h)
	}
	for h, t := range d.targets {
		d.device.DestroyTexture(t.tex)
		delete(d.targets, h)
	}
	clear(d.fences)
	clear(d.framebuffers)

	if d.external {
		return
	}
	d.device.Destroy()
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}

var _ rendertask.Device = (*Device)(nil)
