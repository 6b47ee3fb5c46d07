package hal

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	wgpuhal "github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/rendertask"
	"github.com/gogpu/rendertask/internal/fakegpu"
)

func createNoopDevice(t *testing.T) (wgpuhal.Device, wgpuhal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	d, err := NewDevice(device, queue)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.Close)
	return d
}

// stalledQueue never completes a submission.
type stalledQueue struct {
	wgpuhal.Queue
}

func (stalledQueue) PollCompleted() uint64 { return 0 }

// limitedDevice fails buffer creation after limit buffers.
type limitedDevice struct {
	wgpuhal.Device
	limit     int
	created   int
	destroyed int
}

func (d *limitedDevice) CreateBuffer(desc *wgpuhal.BufferDescriptor) (wgpuhal.Buffer, error) {
	if d.created >= d.limit {
		return nil, errors.New("out of memory")
	}
	d.created++
	return d.Device.CreateBuffer(desc)
}

func (d *limitedDevice) DestroyBuffer(b wgpuhal.Buffer) {
	d.destroyed++
	d.Device.DestroyBuffer(b)
}

type drawable struct{ w, h int }

func (d drawable) Size() (int, int) { return d.w, d.h }

func TestNewDeviceNil(t *testing.T) {
	if _, err := NewDevice(nil, nil); err == nil {
		t.Error("NewDevice(nil, nil) succeeded")
	}
}

func TestCapabilities(t *testing.T) {
	caps := newTestDevice(t).Capabilities()
	if !caps.SyncFences || !caps.NoFlushCrossThreadWait || !caps.StreamBuffers || !caps.ExplicitDefaultFramebuffer {
		t.Errorf("Capabilities() = %+v", caps)
	}
	if caps.VertexArrayObjects {
		t.Error("VertexArrayObjects set on a HAL device")
	}
}

func TestMakeCurrentTwice(t *testing.T) {
	d := newTestDevice(t)
	if err := d.MakeCurrent(); err != nil {
		t.Fatal(err)
	}
	if err := d.MakeCurrent(); err == nil {
		t.Error("second MakeCurrent succeeded")
	}
	if err := d.ReleaseCurrent(); err != nil {
		t.Fatal(err)
	}
	if err := d.MakeCurrent(); err != nil {
		t.Errorf("MakeCurrent after release = %v", err)
	}
}

func TestFenceLifecycle(t *testing.T) {
	d := newTestDevice(t)

	h, err := d.CreateFence()
	if err != nil {
		t.Fatal(err)
	}
	ok, err := d.ClientWaitFence(h, 0, 0)
	if err != nil || !ok {
		t.Fatalf("ClientWaitFence() = %v, %v, want true", ok, err)
	}
	ok, err = d.ClientWaitFence(h, rendertask.WaitFlushCommands, time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("flushing ClientWaitFence() = %v, %v, want true", ok, err)
	}
	if err := d.ServerWaitFence(h); err != nil {
		t.Errorf("ServerWaitFence() = %v", err)
	}
	if n := d.LiveFences(); n != 1 {
		t.Errorf("LiveFences() = %d, want 1", n)
	}

	d.DeleteFence(h)
	if n := d.LiveFences(); n != 0 {
		t.Errorf("LiveFences() after delete = %d", n)
	}
	if _, err := d.ClientWaitFence(h, 0, 0); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("ClientWaitFence(deleted) = %v, want ErrUnknownHandle", err)
	}
	if err := d.ServerWaitFence(h); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("ServerWaitFence(deleted) = %v, want ErrUnknownHandle", err)
	}
}

func TestClientWaitTimeout(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	d, err := NewDevice(device, stalledQueue{queue})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	h, err := d.CreateFence()
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	ok, err := d.ClientWaitFence(h, 0, 5*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("stalled fence reported signalled")
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("wait returned after %v, before the timeout", elapsed)
	}

	// A negative timeout waits for the device to go idle.
	ok, err = d.ClientWaitFence(h, 0, -1)
	if err != nil || !ok {
		t.Errorf("ClientWaitFence(-1) = %v, %v, want true", ok, err)
	}
}

func TestStreamBuffers(t *testing.T) {
	d := newTestDevice(t)

	bufs, err := d.CreateBuffers(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(bufs) != 3 || d.LiveBuffers() != 3 {
		t.Fatalf("CreateBuffers(3) = %v, live %d", bufs, d.LiveBuffers())
	}
	if err := d.WriteBuffer(bufs[0], 0, make([]byte, 256)); err != nil {
		t.Errorf("WriteBuffer() = %v", err)
	}
	if err := d.WriteBuffer(bufs[0], StreamBufferSize-8, make([]byte, 16)); err == nil {
		t.Error("overflowing WriteBuffer succeeded")
	}
	if err := d.WriteBuffer(999, 0, []byte{1}); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("WriteBuffer(unknown) = %v, want ErrUnknownHandle", err)
	}

	d.DeleteBuffers(bufs)
	if n := d.LiveBuffers(); n != 0 {
		t.Errorf("LiveBuffers() after delete = %d", n)
	}
}

func TestCreateBuffersRollsBack(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	ld := &limitedDevice{Device: device, limit: 2}
	d, err := NewDevice(ld, queue)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if _, err := d.CreateBuffers(4); err == nil {
		t.Fatal("CreateBuffers() succeeded past the limit")
	}
	if ld.destroyed != 2 {
		t.Errorf("destroyed %d buffers, want 2", ld.destroyed)
	}
	if n := d.LiveBuffers(); n != 0 {
		t.Errorf("LiveBuffers() = %d, want 0", n)
	}
}

func TestVertexArraysUnsupported(t *testing.T) {
	if _, err := newTestDevice(t).CreateVertexArray(); err == nil {
		t.Error("CreateVertexArray() succeeded")
	}
}

func TestPresentSizesBackbuffer(t *testing.T) {
	d := newTestDevice(t)

	if w, h := d.Backbuffer(); w != 0 || h != 0 {
		t.Errorf("Backbuffer() before Present = %dx%d", w, h)
	}
	if err := d.Present(drawable{640, 480}); err != nil {
		t.Fatal(err)
	}
	if w, h := d.Backbuffer(); w != 640 || h != 480 {
		t.Errorf("Backbuffer() = %dx%d, want 640x480", w, h)
	}
	if err := d.Present(drawable{800, 600}); err != nil {
		t.Fatal(err)
	}
	if w, h := d.Backbuffer(); w != 800 || h != 600 {
		t.Errorf("Backbuffer() after resize = %dx%d, want 800x600", w, h)
	}
	if err := d.Present(drawable{0, 0}); err != nil {
		t.Fatal(err)
	}
	if w, h := d.Backbuffer(); w != 0 || h != 0 {
		t.Errorf("Backbuffer() for an empty drawable = %dx%d", w, h)
	}
}

func TestRenderTargets(t *testing.T) {
	d := newTestDevice(t)

	fb, err := d.CreateFramebuffer()
	if err != nil {
		t.Fatal(err)
	}
	tex, err := d.CreateRenderTarget(16, 16)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.CreateRenderTarget(0, 16); err == nil {
		t.Error("CreateRenderTarget(0, 16) succeeded")
	}

	d.BindFramebuffer(fb, tex)
	if got := d.framebuffers[fb].color; got != tex {
		t.Errorf("attachment = %d, want %d", got, tex)
	}
	d.DestroyRenderTarget(tex)
	if got := d.framebuffers[fb].color; got != 0 {
		t.Errorf("attachment after destroy = %d, want 0", got)
	}
	d.DeleteFramebuffer(fb)
	if d.bound != 0 {
		t.Errorf("bound framebuffer after delete = %d", d.bound)
	}
}

func TestClose(t *testing.T) {
	d := newTestDevice(t)
	if _, err := d.CreateBuffers(2); err != nil {
		t.Fatal(err)
	}
	d.Close()
	d.Close()

	if _, err := d.CreateFence(); !errors.Is(err, ErrClosed) {
		t.Errorf("CreateFence() after Close = %v, want ErrClosed", err)
	}
	if err := d.Flush(); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush() after Close = %v, want ErrClosed", err)
	}
	if err := d.MakeCurrent(); !errors.Is(err, ErrClosed) {
		t.Errorf("MakeCurrent() after Close = %v, want ErrClosed", err)
	}
	if n := d.LiveBuffers(); n != 0 {
		t.Errorf("LiveBuffers() after Close = %d", n)
	}
}

func TestOpen(t *testing.T) {
	d, err := Open(gputypes.BackendEmpty)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if d.Label() == "hal" {
		t.Errorf("Label() = %q, want backend/adapter", d.Label())
	}

	if _, err := Open(gputypes.Backend(200)); err == nil {
		t.Error("Open(unregistered) succeeded")
	}
}

func TestOpenPreferred(t *testing.T) {
	d, err := OpenPreferred()
	if err != nil {
		t.Fatal(err)
	}
	d.Close()
	if !available() {
		t.Error("available() = false with the noop backend registered")
	}
}

type fakeProvider struct {
	device any
	queue  any
}

func (p fakeProvider) Device() gpucontext.Device             { return nil }
func (p fakeProvider) Queue() gpucontext.Queue               { return nil }
func (p fakeProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }
func (p fakeProvider) Adapter() gpucontext.Adapter           { return nil }
func (p fakeProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{} }
func (p fakeProvider) HalDevice() any                        { return p.device }
func (p fakeProvider) HalQueue() any                         { return p.queue }

type plainProvider struct{ fakeProvider }

func (plainProvider) HalDevice() {}

func TestFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	d, err := FromProvider(fakeProvider{device: device, queue: queue})
	if err != nil {
		t.Fatal(err)
	}
	d.Close()

	if _, err := FromProvider(fakeProvider{device: "device", queue: queue}); err == nil {
		t.Error("FromProvider accepted a non-HAL device")
	}
	if _, err := FromProvider(fakeProvider{device: device, queue: 42}); err == nil {
		t.Error("FromProvider accepted a non-HAL queue")
	}
	if _, err := FromProvider(plainProvider{}); err == nil {
		t.Error("FromProvider accepted a provider without HAL types")
	}
}

func TestRunnerOnHAL(t *testing.T) {
	d := newTestDevice(t)
	r, err := rendertask.NewRunner(d, rendertask.WithLabel("hal-test"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	f, err := r.AddFence()
	if err != nil {
		t.Fatal(err)
	}
	if !f.IsSet() {
		t.Fatal("AddFence() returned an unset fence on a HAL device")
	}
	if err := r.ClientWait(&f, 0, time.Second); err != nil {
		t.Fatalf("ClientWait() = %v", err)
	}
	if f.IsSet() {
		t.Error("fence still set after ClientWait")
	}

	win := rendertask.NewWindow(gpucontext.NullWindowProvider{W: 320, H: 200}, true)
	holder := &fakegpu.Holder{}
	err = r.Draw(holder, win, rendertask.WindowDrawParams{}, rendertask.DrawParams{}, func(dc rendertask.DrawContext) {
		cmds, err := dc.MakeCommands(holder, win, rendertask.Viewport{Width: 320, Height: 200}, rendertask.IdentityMat4())
		if err != nil {
			t.Error(err)
			return
		}
		if cmds.StreamBuffer() == 0 {
			t.Error("StreamBuffer() = 0 on a device with stream buffers")
		}
		cmds.SetClearColor(gputypes.Color{R: 1, A: 1})
		cmds.Clear()
		if err := cmds.Present(); err != nil {
			t.Error(err)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.AwaitPending(); err != nil {
		t.Fatal(err)
	}
	if w, h := d.Backbuffer(); w != 320 || h != 200 {
		t.Errorf("Backbuffer() = %dx%d, want 320x200", w, h)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if n := d.LiveBuffers(); n != 0 {
		t.Errorf("runner left %d stream buffers", n)
	}
	if n := d.LiveFences(); n != 0 {
		t.Errorf("runner left %d fences", n)
	}
}
