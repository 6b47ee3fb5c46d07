//go:build linux

package drm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// waitVBlank mirrors union drm_wait_vblank. The request's signal field
// overlays Sec; C long is Go int on Linux.
type waitVBlank struct {
	Type     uint32
	Sequence uint32
	Sec      int
	Usec     int
}

var ioctlWaitVBlank = ioWR(0x3a, unsafe.Sizeof(waitVBlank{}))

// Reply is the kernel's answer to a non-event vblank wait.
type Reply struct {
	Sequence uint32
	Sec      int64
	Usec     int64
}

// Open opens the DRM device at path for non-blocking reads.
func Open(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("drm: open %s: %w", path, err)
	}
	return fd, nil
}

// Close closes fd.
func Close(fd int) error {
	return unix.Close(fd)
}

// WaitVBlank issues DRM_IOCTL_WAIT_VBLANK. With VBlankFlagEvent in typ it
// returns at once and the kernel queues an event carrying signal as user
// data; otherwise it blocks until the requested vblank.
func WaitVBlank(fd int, typ, sequence uint32, signal uint64) (Reply, error) {
	v := waitVBlank{Type: typ, Sequence: sequence, Sec: int(signal)}
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), ioctlWaitVBlank, uintptr(unsafe.Pointer(&v)))
		switch errno {
		case 0:
			return Reply{Sequence: v.Sequence, Sec: int64(v.Sec), Usec: int64(v.Usec)}, nil
		case unix.EINTR:
			continue
		default:
			return Reply{}, fmt.Errorf("drm: wait vblank: %w", errno)
		}
	}
}

// ReadEvents reads and decodes the pending events on fd. It returns no
// events and no error when nothing is pending.
func ReadEvents(fd int) ([]VBlankEvent, error) {
	var buf [1024]byte
	n, err := unix.Read(fd, buf[:])
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("drm: read events: %w", err)
	}
	return ParseEvents(buf[:n]), nil
}
