// Package drm issues the Linux DRM vertical blank ioctl and decodes the
// events the kernel queues on the device file descriptor.
package drm

import (
	"encoding/binary"
	"errors"
	"os"
	"time"
)

// ErrUnsupported is returned on platforms without DRM.
var ErrUnsupported = errors.New("drm: unsupported platform")

// DefaultDevicePath is opened when KMSDEVICE is unset.
const DefaultDevicePath = "/dev/dri/card0"

// Vblank request types and flags from drm.h.
const (
	VBlankAbsolute  = 0x0
	VBlankRelative  = 0x1
	VBlankFlagEvent = 0x04000000
)

// EventVBlank is the drm_event type of a vblank event.
const EventVBlank = 0x01

const (
	eventHeaderSize = 8
	vblankEventSize = eventHeaderSize + 24
)

// DevicePath returns the DRM device to open: $KMSDEVICE or
// DefaultDevicePath.
func DevicePath() string {
	if p := os.Getenv("KMSDEVICE"); p != "" {
		return p
	}
	return DefaultDevicePath
}

// VBlankEvent is a decoded drm_event_vblank.
type VBlankEvent struct {
	UserData uint64
	Sec      uint32
	Usec     uint32
	Sequence uint32
	CrtcID   uint32
}

// Timestamp returns the vblank time in microseconds.
func (e VBlankEvent) Timestamp() time.Duration {
	return time.Duration(uint64(e.Sec)*1e6+uint64(e.Usec)) * time.Microsecond
}

// ParseEvents decodes the vblank events in b, a buffer read from the device.
// Events of other types are skipped; a truncated trailing event is ignored.
func ParseEvents(b []byte) []VBlankEvent {
	var out []VBlankEvent
	le := binary.NativeEndian
	for len(b) >= eventHeaderSize {
		typ := le.Uint32(b[0:4])
		length := int(le.Uint32(b[4:8]))
		if length < eventHeaderSize || length > len(b) {
			break
		}
		if typ == EventVBlank && length >= vblankEventSize {
			out = append(out, VBlankEvent{
				UserData: le.Uint64(b[8:16]),
				Sec:      le.Uint32(b[16:20]),
				Usec:     le.Uint32(b[20:24]),
				Sequence: le.Uint32(b[24:28]),
				CrtcID:   le.Uint32(b[28:32]),
			})
		}
		b = b[length:]
	}
	return out
}

// ioWR encodes an _IOWR('d', nr, size) request number.
func ioWR(nr, size uintptr) uintptr {
	const (
		dirRead  = 2
		dirWrite = 1
		typ      = 'd'
	)
	return (dirRead|dirWrite)<<30 | size<<16 | typ<<8 | nr
}
