package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/voksel/engine/internal/core/ecs"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for scripted systems and tasks.
// The VM is not goroutine-safe: every ScriptSystem registers as
// non-parallel, so the scheduler's serialization barrier keeps at most one
// script on a worker at a time, and scripted user tasks are ordered against
// each other by their declared dependencies.
type Engine struct {
	vm  *lua.LState
	dir string
	log *zap.Logger
}

// NewEngine creates a Lua engine rooted at scriptsDir and preloads every
// .lua file directly inside it.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, dir: scriptsDir, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// BindWorld exposes a minimal read API to scripts: entity_count().
func (e *Engine) BindWorld(w *ecs.World) {
	e.vm.SetGlobal("entity_count", e.vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(w.Pool().Count()))
		return 1
	}))
}

// loadDir loads all .lua files in a directory. A missing directory is not
// an error; pipelines may reference scripts individually.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadFile loads one script file, resolved against the engine's script dir
// when the path is relative.
func (e *Engine) LoadFile(path string) error {
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.dir, path)
	}
	if err := e.vm.DoFile(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (e *Engine) globalFunc(name string) (lua.LValue, error) {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return nil, fmt.Errorf("lua global %q is not defined", name)
	}
	if _, ok := fn.(*lua.LFunction); !ok {
		return nil, fmt.Errorf("lua global %q is not a function", name)
	}
	return fn, nil
}

// Call invokes a loaded global function with the frame's delta seconds.
func (e *Engine) Call(fn lua.LValue, dt float64) error {
	return e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(dt))
}

func (e *Engine) Close() {
	e.vm.Close()
}

// GlobalNumber reads a numeric Lua global, for diagnostics and tests.
func (e *Engine) GlobalNumber(name string) (float64, bool) {
	v := e.vm.GetGlobal(name)
	n, ok := v.(lua.LNumber)
	return float64(n), ok
}
