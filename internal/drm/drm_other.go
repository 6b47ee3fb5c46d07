//go:build !linux

package drm

// Reply is the kernel's answer to a non-event vblank wait.
type Reply struct {
	Sequence uint32
	Sec      int64
	Usec     int64
}

func Open(string) (int, error) { return -1, ErrUnsupported }

func Close(int) error { return ErrUnsupported }

func WaitVBlank(int, uint32, uint32, uint64) (Reply, error) { return Reply{}, ErrUnsupported }

func ReadEvents(int) ([]VBlankEvent, error) { return nil, ErrUnsupported }
