//go:build !linux

package frametimer

import "github.com/gogpu/rendertask/internal/drm"

func (s *DRMSource) Probe() error {
	if s.loop == nil {
		return errNoLoop
	}
	return drm.ErrUnsupported
}

func (s *DRMSource) Arm() error { return drm.ErrUnsupported }

func (s *DRMSource) Close() error { return nil }
