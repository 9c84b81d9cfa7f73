package light

import (
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/logger"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
)

func newTestStore(t *testing.T, capacity int) (renderer.Renderer, Store) {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	s, err := NewStore(r, WithCapacity(capacity), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Release()
		_ = r.Release()
	})
	return r, s
}

func TestGPULightLayout(t *testing.T) {
	g := GPULight{
		Position:  [4]float32{1, 2, 3, 1},
		Color:     [4]float32{0.5, 0.25, 1, 1},
		Radius:    4,
		Intensity: 2,
		LightType: uint32(LightTypeSpot),
	}
	if g.Size() != 48 {
		t.Fatalf("Size = %d, want 48", g.Size())
	}
	buf := g.Marshal()
	if len(buf) != GPULightWords*4 {
		t.Fatalf("len(Marshal) = %d", len(buf))
	}
	if common.Float(buf, 8) != 3 || common.Float(buf, 12) != 1 || common.Float(buf, 32) != 4 || common.Uint(buf, 40) != 2 {
		t.Fatalf("unexpected layout: %v", buf)
	}

	back := GPULightFromWords(common.BytesToWords(buf), 0)
	if back != g {
		t.Fatalf("GPULightFromWords = %+v, want %+v", back, g)
	}
}

func TestSetLightsSkipsDirectionalAndDisabled(t *testing.T) {
	r, s := newTestStore(t, 8)

	lights := []Light{
		NewPointLight([3]float32{1, 0, 0}, 1),
		NewLight(LightTypeDirectional),
		NewPointLight([3]float32{2, 0, 0}, 1, WithEnabled(false)),
		NewLight(LightTypeSpot, WithPosition(3, 0, 0), WithRadius(2)),
	}
	if err := s.SetLights(lights); err != nil {
		t.Fatalf("SetLights: %v", err)
	}
	if s.Count() != 2 {
		t.Fatalf("Count = %d, want 2", s.Count())
	}
	if n, err := s.Sync(); err != nil || n != 2 {
		t.Fatalf("Sync = %d, %v; want 2 records", n, err)
	}

	data, err := r.ReadBuffer(s.Buffer(), 0, 2*48)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	words := common.BytesToWords(data)
	if x := GPULightFromWords(words, 0).Position[0]; x != 1 {
		t.Fatalf("light 0 x = %v, want 1", x)
	}
	if l := GPULightFromWords(words, 1); l.Position[0] != 3 || l.Radius != 2 {
		t.Fatalf("light 1 = %+v", l)
	}
}

func TestSetLightsReplaceAll(t *testing.T) {
	_, s := newTestStore(t, 4)

	if err := s.SetLights([]Light{NewPointLight([3]float32{}, 1), NewPointLight([3]float32{}, 1)}); err != nil {
		t.Fatalf("SetLights: %v", err)
	}
	if err := s.SetLights(nil); err != nil {
		t.Fatalf("SetLights(nil): %v", err)
	}
	if s.Count() != 0 || s.Revision() != 2 {
		t.Fatalf("Count = %d Revision = %d", s.Count(), s.Revision())
	}
	if n, err := s.Sync(); err != nil || n != 0 {
		t.Fatalf("Sync = %d, %v; want 0 records", n, err)
	}
}

func TestSyncReportsUploadedCount(t *testing.T) {
	_, s := newTestStore(t, 4)

	one := []Light{NewPointLight([3]float32{}, 1)}
	two := []Light{NewPointLight([3]float32{}, 1), NewPointLight([3]float32{1, 0, 0}, 1)}
	if err := s.SetLights(one); err != nil {
		t.Fatalf("SetLights: %v", err)
	}
	if n, err := s.Sync(); err != nil || n != 1 {
		t.Fatalf("Sync = %d, %v; want 1 record", n, err)
	}

	// Staged but not uploaded.
	if err := s.SetLights(two); err != nil {
		t.Fatalf("SetLights: %v", err)
	}
	if s.Count() != 2 {
		t.Fatalf("Count = %d, want 2", s.Count())
	}
	if n, err := s.Sync(); err != nil || n != 2 {
		t.Fatalf("Sync = %d, %v; want 2 records", n, err)
	}
	if n, err := s.Sync(); err != nil || n != 2 {
		t.Fatalf("Sync without changes = %d, %v; want 2 records", n, err)
	}
}

func TestSetLightsRejectsWithoutChange(t *testing.T) {
	_, s := newTestStore(t, 1)

	if err := s.SetLights([]Light{NewPointLight([3]float32{}, 1)}); err != nil {
		t.Fatalf("SetLights: %v", err)
	}

	tooMany := []Light{NewPointLight([3]float32{}, 1), NewPointLight([3]float32{}, 1)}
	if err := s.SetLights(tooMany); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
	bad := []Light{NewPointLight([3]float32{}, float32(math.NaN()))}
	if err := s.SetLights(bad); !errors.Is(err, ErrInvalidLight) {
		t.Fatalf("err = %v, want ErrInvalidLight", err)
	}
	if s.Count() != 1 || s.Revision() != 1 {
		t.Fatalf("rejected set changed the store: Count = %d Revision = %d", s.Count(), s.Revision())
	}
}
