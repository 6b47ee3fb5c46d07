// Package hal implements a rendertask.Device on the gogpu/wgpu hardware
// abstraction layer.
//
// Importing the package registers it with the backend registry as "hal".
// Real GPU backends register with HAL when imported:
//
//	import (
//	    _ "github.com/gogpu/rendertask/backend/hal"
//	    _ "github.com/gogpu/wgpu/hal/allbackends"
//	)
//
// A device already owned by a window can be shared instead:
//
//	dev, err := hal.FromProvider(provider)
//
// Fences are queue submission indices. Stream buffers are HAL vertex
// buffers and the default framebuffer is a BGRA8 texture sized to the last
// presented drawable. HAL has no vertex array objects, so the runner falls
// back to client-side vertex state.
package hal
