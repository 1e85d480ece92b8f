package scripting

import (
	"context"

	"github.com/voksel/engine/internal/core/ecs"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ScriptSystem adapts a Lua global function to the scheduler's System
// interface. Script errors are logged, not propagated: a misbehaving script
// must not fail the whole phase every frame.
type ScriptSystem struct {
	engine *Engine
	fn     lua.LValue
	name   string
}

// SystemFromGlobal binds the named Lua global function as a system handle.
func (e *Engine) SystemFromGlobal(name, fnName string) (*ScriptSystem, error) {
	fn, err := e.globalFunc(fnName)
	if err != nil {
		return nil, err
	}
	return &ScriptSystem{engine: e, fn: fn, name: name}, nil
}

func (s *ScriptSystem) Run(_ *ecs.World, dt float64) {
	if err := s.engine.Call(s.fn, dt); err != nil {
		s.engine.log.Error("script system failed",
			zap.String("system", s.name), zap.Error(err))
	}
}

// TaskFromGlobal binds the named Lua global function as graph task work.
// Unlike systems, a scripted task's error fails the task, so the graph's
// failure propagation applies.
func (e *Engine) TaskFromGlobal(fnName string) (func(ctx context.Context) error, error) {
	fn, err := e.globalFunc(fnName)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context) error {
		return e.Call(fn, 0)
	}, nil
}
