package rendertask

// Capabilities describes what a Device supports. The runner reads it once at
// startup and picks its strategies from it; nothing branches on the backend
// type afterwards.
type Capabilities struct {
	// SyncFences reports fence support. Without it AddFence returns an
	// unset Fence and every wait on it succeeds immediately.
	SyncFences bool

	// NoFlushCrossThreadWait allows non-flushing ClientWait and DeleteFence
	// directly on the calling goroutine instead of through the runner.
	NoFlushCrossThreadWait bool

	// StreamBuffers enables the stream buffer ring.
	StreamBuffers bool

	// VertexArrayObjects enables a dedicated stream vertex array object.
	VertexArrayObjects bool

	// ExplicitDefaultFramebuffer reports that drawables need a framebuffer
	// object created by the context instead of an implicit one.
	ExplicitDefaultFramebuffer bool

	// ShaderCompilerRelease reports that ReleaseShaderCompiler has an effect.
	ShaderCompilerRelease bool
}

// attribPosition is the vertex attribute index of positions.
const attribPosition = 0

// bufferStrategy supplies vertex buffers for streamed geometry.
type bufferStrategy interface {
	init(dev Device) error
	next() BufferHandle
	release(dev Device)
}

// arrayStrategy manages vertex array state for streamed geometry.
type arrayStrategy interface {
	init(dev Device) error
	release(dev Device)
}

// selectStrategies picks the buffer and array strategies for caps.
func selectStrategies(caps Capabilities, streamBuffers int) (bufferStrategy, arrayStrategy) {
	var b bufferStrategy = clientMemory{}
	if caps.StreamBuffers {
		b = &streamRing{size: streamBuffers}
	}
	var a arrayStrategy = noVertexArray{}
	if caps.VertexArrayObjects {
		a = &streamVertexArray{}
	}
	return b, a
}

// streamRing cycles through a fixed set of stream buffers so that a buffer
// is not rewritten while the GPU may still read it.
type streamRing struct {
	size int
	bufs []BufferHandle
	idx  int
}

func (s *streamRing) init(dev Device) error {
	if len(s.bufs) > 0 {
		return nil
	}
	bufs, err := dev.CreateBuffers(s.size)
	if err != nil {
		return err
	}
	Logger().Debug("made stream buffers", "count", len(bufs))
	s.bufs = bufs
	return nil
}

func (s *streamRing) next() BufferHandle {
	if len(s.bufs) == 0 {
		return 0
	}
	b := s.bufs[s.idx]
	s.idx = (s.idx + 1) % len(s.bufs)
	return b
}

func (s *streamRing) release(dev Device) {
	if len(s.bufs) == 0 {
		return
	}
	dev.DeleteBuffers(s.bufs)
	s.bufs = nil
	s.idx = 0
}

// clientMemory streams geometry from client memory; there are no buffers.
type clientMemory struct{}

func (clientMemory) init(Device) error  { return nil }
func (clientMemory) next() BufferHandle { return 0 }
func (clientMemory) release(Device)     {}

// streamVertexArray owns the vertex array object used for streamed geometry.
type streamVertexArray struct {
	vao VertexArrayHandle
}

func (s *streamVertexArray) init(dev Device) error {
	if s.vao != 0 {
		return nil
	}
	vao, err := dev.CreateVertexArray()
	if err != nil {
		return err
	}
	Logger().Debug("made stream vertex array", "vao", vao)
	s.vao = vao
	dev.BindVertexArray(vao)
	return nil
}

func (s *streamVertexArray) release(dev Device) {
	if s.vao == 0 {
		return
	}
	dev.DeleteVertexArray(s.vao)
	s.vao = 0
}

type noVertexArray struct{}

func (noVertexArray) init(Device) error { return nil }
func (noVertexArray) release(Device)    {}
