package null

import (
	"testing"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/rendertask"
	"github.com/gogpu/rendertask/backend"
	"github.com/gogpu/rendertask/internal/fakegpu"
)

func TestRegistered(t *testing.T) {
	dev, err := backend.Open(backend.NameNull)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := dev.(*Device); !ok {
		t.Errorf("Open(%q) = %T, want *Device", backend.NameNull, dev)
	}
}

func TestNoCapabilities(t *testing.T) {
	if caps := New().Capabilities(); caps != (rendertask.Capabilities{}) {
		t.Errorf("Capabilities() = %+v, want none", caps)
	}
}

func TestMakeCurrent(t *testing.T) {
	d := New()
	if err := d.MakeCurrent(); err != nil {
		t.Fatal(err)
	}
	if err := d.MakeCurrent(); err == nil {
		t.Error("second MakeCurrent succeeded")
	}
	if err := d.ReleaseCurrent(); err != nil {
		t.Fatal(err)
	}
	if err := d.MakeCurrent(); err != nil {
		t.Errorf("MakeCurrent after release = %v", err)
	}
}

func TestRunnerOnNull(t *testing.T) {
	d := New()
	r, err := rendertask.NewRunner(d)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	f, err := r.AddFence()
	if err != nil {
		t.Fatal(err)
	}
	if f.IsSet() {
		t.Error("AddFence() set a fence on a device without sync fences")
	}
	if err := r.ClientWait(&f, 0, time.Second); err != nil {
		t.Errorf("ClientWait(unset) = %v", err)
	}

	win := rendertask.NewWindow(gpucontext.NullWindowProvider{W: 8, H: 8}, false)
	holder := &fakegpu.Holder{}
	err = r.Draw(holder, win, rendertask.WindowDrawParams{}, rendertask.DrawParams{}, func(dc rendertask.DrawContext) {
		cmds, err := dc.MakeCommands(holder, win, rendertask.Viewport{Width: 8, Height: 8}, rendertask.IdentityMat4())
		if err != nil {
			t.Error(err)
			return
		}
		if b := cmds.StreamBuffer(); b != 0 {
			t.Errorf("StreamBuffer() = %d, want client memory", b)
		}
		cmds.Clear()
		if err := cmds.Present(); err != nil {
			t.Error(err)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := d.Presents(); n != 1 {
		t.Errorf("Presents() = %d, want 1", n)
	}
}
