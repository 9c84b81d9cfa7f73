package camera

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/go-gl/mathgl/mgl32"
)

func TestProjectionMapsNearFarToWebGPUDepth(t *testing.T) {
	c := NewCamera(WithNear(0.1), WithFar(100), WithViewport(1600, 900))
	proj := c.ProjectionMatrix()

	near := common.TransformPoint(proj, mgl32.Vec3{0, 0, -0.1})
	far := common.TransformPoint(proj, mgl32.Vec3{0, 0, -100})
	if math.Abs(float64(near[2])) > 1e-5 {
		t.Errorf("near plane depth = %v, want 0", near[2])
	}
	if math.Abs(float64(far[2]-1)) > 1e-4 {
		t.Errorf("far plane depth = %v, want 1", far[2])
	}
	if got := c.Aspect(); math.Abs(float64(got-16.0/9.0)) > 1e-6 {
		t.Errorf("Aspect = %v", got)
	}
}

func TestInverseProjectionRoundTrip(t *testing.T) {
	c := NewCamera()
	p := mgl32.Vec3{1.5, -0.75, -12}
	clip := common.TransformPoint(c.ProjectionMatrix(), p)
	back := common.TransformPoint(c.InverseProjectionMatrix(), clip)
	if !back.ApproxEqualThreshold(p, 1e-3) {
		t.Fatalf("round trip = %v, want %v", back, p)
	}
}

func TestViewMatrixLooksDownNegativeZ(t *testing.T) {
	c := NewCamera(WithLookAt([3]float32{0, 0, 10}, [3]float32{0, 0, 0}))
	v := common.TransformPoint(c.ViewMatrix(), mgl32.Vec3{0, 0, 0})
	if !v.ApproxEqualThreshold(mgl32.Vec3{0, 0, -10}, 1e-5) {
		t.Fatalf("origin in view space = %v, want (0, 0, -10)", v)
	}
}

func TestRevisionTracksChanges(t *testing.T) {
	ctrl := NewOrbitController(WithRadius(10))
	c := NewCamera(WithController(ctrl))
	start := c.Revision()

	c.Update()
	if c.Revision() != start {
		t.Fatalf("Update without movement bumped revision")
	}

	ctrl.Orbit(0.25)
	c.Update()
	if c.Revision() != start+1 {
		t.Fatalf("Revision = %d, want %d", c.Revision(), start+1)
	}

	c.SetViewport(640, 480)
	if c.Revision() != start+2 {
		t.Fatalf("Revision = %d, want %d", c.Revision(), start+2)
	}
	if w, h := c.Viewport(); w != 640 || h != 480 {
		t.Fatalf("Viewport = %dx%d", w, h)
	}
}

func TestOrbitControllerKeepsRadius(t *testing.T) {
	ctrl := NewOrbitController(WithRadius(8), WithTarget(1, 2, 3), WithRadiusBounds(1, 20))
	for i := 0; i < 10; i++ {
		ctrl.Orbit(0.7)
		px, py, pz := ctrl.Position()
		d := mgl32.Vec3{px - 1, py - 2, pz - 3}.Len()
		if math.Abs(float64(d-8)) > 1e-4 {
			t.Fatalf("distance to target = %v, want 8", d)
		}
	}

	ctrl.SetRadius(100)
	if ctrl.Radius() != 20 {
		t.Fatalf("Radius = %v, want clamp to 20", ctrl.Radius())
	}
}

func TestStateIsOneRevision(t *testing.T) {
	c := NewCamera(WithViewport(1600, 900))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 500 {
			if i%2 == 0 {
				c.SetViewport(800, 800)
			} else {
				c.SetViewport(1600, 900)
			}
		}
	}()

	for {
		select {
		case <-done:
			st := c.State()
			if st.Revision != c.Revision() || st.Width != 1600 || st.Height != 900 {
				t.Fatalf("final state %+v", st)
			}
			return
		default:
		}
		st := c.State()
		proj := common.Perspective(c.Fov(), float32(st.Width)/float32(st.Height), st.Near, st.Far)
		if !st.InverseProjection.ApproxEqualThreshold(proj.Inv(), 1e-4) {
			t.Fatalf("inverse projection of a %dx%d viewport does not match revision %d", st.Width, st.Height, st.Revision)
		}
	}
}
