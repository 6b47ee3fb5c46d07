//go:build linux

package frametimer

import (
	"fmt"

	eventloop "github.com/joeycumines/go-eventloop"

	"github.com/gogpu/rendertask"
	"github.com/gogpu/rendertask/internal/drm"
)

// Probe opens the device, waits for one vblank to check driver support and
// registers the descriptor with the loop.
func (s *DRMSource) Probe() error {
	if s.loop == nil {
		return errNoLoop
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}

	fd, err := drm.Open(s.path)
	if err != nil {
		return err
	}
	if _, err := drm.WaitVBlank(fd, drm.VBlankRelative, 1, 0); err != nil {
		_ = drm.Close(fd)
		return fmt.Errorf("frametimer: %s: vblank unsupported: %w", s.path, err)
	}
	if err := s.loop.RegisterFD(fd, eventloop.EventRead, s.onReadable); err != nil {
		_ = drm.Close(fd)
		return fmt.Errorf("frametimer: register %s: %w", s.path, err)
	}
	s.fd = fd
	s.opened = true
	rendertask.Logger().Info("opened drm device", "path", s.path, "fd", fd)
	return nil
}

// Arm requests an event for the next vblank.
func (s *DRMSource) Arm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return ErrSourceClosed
	}
	s.arms++
	if _, err := drm.WaitVBlank(s.fd, drm.VBlankRelative|drm.VBlankFlagEvent, 1, s.arms); err != nil {
		return err
	}
	return nil
}

func (s *DRMSource) onReadable(ev eventloop.IOEvents) {
	s.mu.Lock()
	fd, opened := s.fd, s.opened
	s.mu.Unlock()
	if !opened {
		return
	}
	events, err := drm.ReadEvents(fd)
	if err != nil {
		s.fail(err)
		return
	}
	s.dispatch(events)
}

// Close unregisters and closes the device.
func (s *DRMSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil
	}
	s.opened = false
	if err := s.loop.UnregisterFD(s.fd); err != nil {
		rendertask.Logger().Warn("unregister drm fd", "path", s.path, "err", err)
	}
	err := drm.Close(s.fd)
	s.fd = -1
	return err
}
