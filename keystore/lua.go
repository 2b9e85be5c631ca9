package keystore

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"
)

type (
	// Lua resolves secrets through a user-supplied script, so deployments
	// can express lookup policy (tenant routing, key prefixes, deny lists)
	// without recompiling. The script must define
	//
	//	function resolve(api_key)
	//
	// returning either the secret string, nil for an unknown key, or a
	// table {secret = "...", disabled = true|false}.
	Lua struct {
		mu    sync.Mutex
		state *lua.LState
	}

	luaRecord struct {
		Secret   string
		Disabled bool
	}
)

// NewLua loads and runs the script at path and verifies it defined a
// resolve function. The returned resolver serializes calls into the single
// Lua state, scripts are expected to be cheap policy, not I/O.
func NewLua(path string) (*Lua, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: unable to read lua script, cause %w", err)
	}
	return NewLuaScript(string(script))
}

// NewLuaScript is NewLua for an in-memory script.
func NewLuaScript(script string) (*Lua, error) {
	state := lua.NewState()
	if err := state.DoString(script); err != nil {
		state.Close()
		return nil, fmt.Errorf("keystore: unable to load lua script, cause %w", err)
	}
	if _, ok := state.GetGlobal("resolve").(*lua.LFunction); !ok {
		state.Close()
		return nil, fmt.Errorf("keystore: lua script does not define a resolve function")
	}
	return &Lua{state: state}, nil
}

func (l *Lua) ResolveSecret(ctx context.Context, apiKey string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.SetContext(ctx)
	err := l.state.CallByParam(lua.P{
		Fn:      l.state.GetGlobal("resolve"),
		NRet:    1,
		Protect: true,
	}, lua.LString(apiKey))
	if err != nil {
		return "", false, fmt.Errorf("keystore: lua resolve failed, cause %w", err)
	}
	ret := l.state.Get(-1)
	l.state.Pop(1)

	switch v := ret.(type) {
	case *lua.LNilType:
		return "", false, nil
	case lua.LString:
		return string(v), true, nil
	case *lua.LTable:
		var record luaRecord
		if err := gluamapper.Map(v, &record); err != nil {
			return "", false, fmt.Errorf("keystore: lua resolve returned an unmappable table, cause %w", err)
		}
		if record.Disabled || record.Secret == "" {
			return "", false, nil
		}
		return record.Secret, true, nil
	default:
		return "", false, fmt.Errorf("keystore: lua resolve returned %v, expected string, table or nil", ret.Type())
	}
}

func (l *Lua) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Close()
}
