// Package backend keeps the registry of graphics devices a Runner can own.
//
// Backends register themselves from init functions with a name, a priority
// and an availability check:
//
//	func init() {
//	    backend.Register(backend.NameHAL, backend.PriorityGPU, open, available)
//	}
//
// Applications import the backends they want and pick one by name or let the
// registry choose the best available:
//
//	import (
//	    "github.com/gogpu/rendertask/backend"
//	    _ "github.com/gogpu/rendertask/backend/hal"
//	    _ "github.com/gogpu/rendertask/backend/null"
//	)
//
//	dev, name, err := backend.OpenBest()
//
// # Available Backends
//
//   - "hal": github.com/gogpu/wgpu HAL device (priority 100)
//   - "null": no capabilities; every fence is unset (priority 0)
package backend
