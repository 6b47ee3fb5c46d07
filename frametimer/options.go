package frametimer

import (
	eventloop "github.com/joeycumines/go-eventloop"
)

// Option configures a Timer.
type Option func(*options)

type options struct {
	label string
}

// WithLabel sets the label used in log lines.
func WithLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}

// SourceOption configures a SimulatedSource or DRMSource.
type SourceOption func(*sourceOptions)

type sourceOptions struct {
	loop       *eventloop.Loop
	devicePath string
}

// WithLoop delivers vblank events on loop. DRMSource requires it: the device
// file descriptor is registered with the loop for read readiness.
func WithLoop(loop *eventloop.Loop) SourceOption {
	return func(o *sourceOptions) {
		o.loop = loop
	}
}

// WithDevicePath overrides the DRM device path, which otherwise comes from
// $KMSDEVICE or /dev/dri/card0.
func WithDevicePath(path string) SourceOption {
	return func(o *sourceOptions) {
		o.devicePath = path
	}
}
