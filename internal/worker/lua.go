package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"overlayd/internal/common/fsutil"
	"overlayd/pkg/types"
)

// HandlerFunc is the global function every executor script must define:
// handle(item, config).
const HandlerFunc = "handle"

// HostModule is the global table exposing host functions to scripts.
const HostModule = "overlay"

// DefaultExecTimeout bounds a single handle call.
const DefaultExecTimeout = 10 * time.Second

// ErrNoHandler is returned when a script does not define handle.
var ErrNoHandler = errors.New("executor does not define handle(item, config)")

// Executor applies one item for a controller.
type Executor interface {
	Handle(ctx context.Context, item types.WheelResult, config map[string]any) error
	Close() error
}

// LuaExecutor runs a controller's executor.lua in a sandboxed state. The
// state is reused across items; calls are serialized.
type LuaExecutor struct {
	mu      sync.Mutex
	L       *lua.LState
	dir     string
	timeout time.Duration
	log     zerolog.Logger
	closed  bool
}

// LuaOption configures NewLuaExecutor.
type LuaOption func(*LuaExecutor)

// WithExecTimeout bounds each handle call.
func WithExecTimeout(d time.Duration) LuaOption {
	return func(e *LuaExecutor) { e.timeout = d }
}

// WithExecLogger sets the logger behind overlay.log.
func WithExecLogger(l zerolog.Logger) LuaOption {
	return func(e *LuaExecutor) { e.log = l }
}

// NewLuaExecutor loads script. Relative paths passed to host file functions
// resolve against the script's directory.
func NewLuaExecutor(script string, opts ...LuaOption) (*LuaExecutor, error) {
	e := &LuaExecutor{
		dir:     filepath.Dir(script),
		timeout: DefaultExecTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	e.L = L
	e.installHostModule()

	if err := L.DoFile(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("load %s: %w", script, err)
	}
	if fn := L.GetGlobal(HandlerFunc); fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("%s: %w", script, ErrNoHandler)
	}
	return e, nil
}

// openSafeLibraries opens base, table, string and math only. io, os, debug
// and package stay closed; file access goes through the host module.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (e *LuaExecutor) installHostModule() {
	mod := e.L.SetFuncs(e.L.NewTable(), map[string]lua.LGFunction{
		"log":         e.luaLog,
		"append_line": e.luaAppendLine,
		"write_file":  e.luaWriteFile,
		"json_encode": e.luaJSONEncode,
		"expand_path": e.luaExpandPath,
	})
	e.L.SetGlobal(HostModule, mod)
}

// Handle calls handle(item, config). A Lua error or a timeout fails this item
// only.
func (e *LuaExecutor) Handle(ctx context.Context, item types.WheelResult, config map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("executor closed")
	}
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(b, &generic); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	if config == nil {
		config = map[string]any{}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	e.L.SetContext(ctx)
	defer e.L.RemoveContext()

	top := e.L.GetTop()
	defer e.L.SetTop(top)
	return e.L.CallByParam(lua.P{
		Fn:      e.L.GetGlobal(HandlerFunc),
		NRet:    0,
		Protect: true,
	}, toLua(e.L, generic), toLua(e.L, config))
}

// Close releases the Lua state.
func (e *LuaExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		e.L.Close()
	}
	return nil
}

func (e *LuaExecutor) resolvePath(L *lua.LState, p string) string {
	abs, err := fsutil.Resolve(e.dir, p)
	if err != nil {
		L.RaiseError("resolve path %q: %v", p, err)
	}
	return abs
}

// overlay.log(msg [, level])
func (e *LuaExecutor) luaLog(L *lua.LState) int {
	msg := L.CheckString(1)
	lvl, err := zerolog.ParseLevel(L.OptString(2, "info"))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	e.log.WithLevel(lvl).Str("source", "executor").Msg(msg)
	return 0
}

// overlay.append_line(path, line) appends line plus a newline, creating the
// file and its parents as needed. Returns the absolute path.
func (e *LuaExecutor) luaAppendLine(L *lua.LState) int {
	p := e.resolvePath(L, L.CheckString(1))
	line := L.CheckString(2)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		L.RaiseError("append_line: %v", err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		L.RaiseError("append_line: %v", err)
	}
	_, werr := f.WriteString(line + "\n")
	cerr := f.Close()
	if werr != nil {
		L.RaiseError("append_line: %v", werr)
	}
	if cerr != nil {
		L.RaiseError("append_line: %v", cerr)
	}
	L.Push(lua.LString(p))
	return 1
}

// overlay.write_file(path, content) replaces the file's content. Returns the
// absolute path.
func (e *LuaExecutor) luaWriteFile(L *lua.LState) int {
	p := e.resolvePath(L, L.CheckString(1))
	content := L.CheckString(2)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		L.RaiseError("write_file: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		L.RaiseError("write_file: %v", err)
	}
	L.Push(lua.LString(p))
	return 1
}

// overlay.json_encode(value) returns compact JSON.
func (e *LuaExecutor) luaJSONEncode(L *lua.LState) int {
	b, err := json.Marshal(fromLua(L.CheckAny(1)))
	if err != nil {
		L.RaiseError("json_encode: %v", err)
	}
	L.Push(lua.LString(b))
	return 1
}

// overlay.expand_path(path) expands ~ and resolves against the script dir.
func (e *LuaExecutor) luaExpandPath(L *lua.LState) int {
	L.Push(lua.LString(e.resolvePath(L, L.CheckString(1))))
	return 1
}
