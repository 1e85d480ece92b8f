package system

import (
	"math"

	"github.com/voksel/engine/internal/component"
	"github.com/voksel/engine/internal/core/ecs"
	"github.com/voksel/engine/internal/core/event"
	"github.com/voksel/engine/internal/core/sched"
)

// Key codes understood by the controller. The windowing layer maps its own
// codes onto these before emitting KeyPressed/KeyReleased.
const (
	KeyW = iota
	KeyA
	KeyS
	KeyD
)

// CameraControllerSystem turns the input-event stream into camera movement.
// It subscribes to the bus at construction; handlers run on the main thread
// during the Input phase, Run consumes the accumulated state in PreUpdate.
type CameraControllerSystem struct {
	stores *component.Stores
	held   [4]bool
	dYaw   float64
	dPitch float64
	speed  float64
}

func NewCameraControllerSystem(stores *component.Stores, bus *event.Bus) *CameraControllerSystem {
	s := &CameraControllerSystem{stores: stores, speed: 10}
	event.Subscribe(bus, func(e event.KeyPressed) {
		if e.Key >= KeyW && e.Key <= KeyD {
			s.held[e.Key] = true
		}
	})
	event.Subscribe(bus, func(e event.KeyReleased) {
		if e.Key >= KeyW && e.Key <= KeyD {
			s.held[e.Key] = false
		}
	})
	event.Subscribe(bus, func(e event.MouseMoved) {
		s.dYaw += e.X * 0.002
		s.dPitch += e.Y * 0.002
	})
	return s
}

func (s *CameraControllerSystem) Metadata() sched.Metadata {
	return sched.Metadata{
		Name:     "CameraController",
		Stage:    sched.StagePreUpdate,
		Reads:    s.stores.Cameras.Mask(),
		Writes:   s.stores.Transforms.Mask(),
		Priority: 10,
		Parallel: true,
	}
}

func (s *CameraControllerSystem) Run(_ *ecs.World, dt float64) {
	var forward, strafe float64
	if s.held[KeyW] {
		forward += 1
	}
	if s.held[KeyS] {
		forward -= 1
	}
	if s.held[KeyD] {
		strafe += 1
	}
	if s.held[KeyA] {
		strafe -= 1
	}

	ecs.Each2(s.stores.Cameras, s.stores.Transforms,
		func(_ ecs.EntityID, _ *component.Camera, t *component.Transform) {
			t.Yaw += s.dYaw
			t.Pitch += s.dPitch
			if t.Pitch > math.Pi/2 {
				t.Pitch = math.Pi / 2
			}
			if t.Pitch < -math.Pi/2 {
				t.Pitch = -math.Pi / 2
			}
			sin, cos := math.Sincos(t.Yaw)
			t.X += (forward*sin + strafe*cos) * s.speed * dt
			t.Z += (forward*cos - strafe*sin) * s.speed * dt
		})
	s.dYaw, s.dPitch = 0, 0
}
