package hal

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	wgpuhal "github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendertask"
	"github.com/gogpu/rendertask/backend"
)

// PreferredBackends is the order OpenPreferred tries HAL backends in. The
// empty backend is the noop device, used only when nothing else registered.
var PreferredBackends = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendDX12,
	gputypes.BackendGL,
	gputypes.BackendEmpty,
}

func init() {
	backend.Register(backend.NameHAL, backend.PriorityGPU, open, available)
}

func open() (rendertask.Device, error) {
	return OpenPreferred()
}

func available() bool {
	return len(wgpuhal.AvailableBackends()) > 0
}

// OpenPreferred opens the first registered backend in PreferredBackends that
// yields a device. HAL backends register when imported, typically through
// github.com/gogpu/wgpu/hal/allbackends.
func OpenPreferred() (*Device, error) {
	var errs []error
	for _, variant := range PreferredBackends {
		if _, ok := wgpuhal.GetBackend(variant); !ok {
			continue
		}
		d, err := Open(variant)
		if err == nil {
			return d, nil
		}
		rendertask.Logger().Warn("hal: backend failed", "backend", variant, "err", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no hal backend registered", backend.ErrNotAvailable)
	}
	return nil, errors.Join(errs...)
}
