// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxworker

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// moduleStore is the Go-native stand-in for the source system's
// dynamic-language module/expression evaluator. Go has no runtime
// "eval", so core.eval here interprets a tiny assignment/lookup
// sublanguage against a process-wide table of named namespaces:
//
//	"module S"         declares an empty namespace named S
//	"S.x = <literal>"  assigns a Go literal (string/int/float/bool) into S
//	"S.x"              looks up and returns the current value of S.x
//
// The module argument eval is called with is the field's implicit
// namespace: "x" and "x = <literal>" mean "S.x" once the caller already
// named S as the module, so a caller that has already picked a module
// doesn't have to re-qualify every field inside it.
//
// This preserves the round-trip shape the manager-side EvalWait/
// EvalFetch sugar exercises (spec scenario: define a module, assign a
// field, fetch it back) without pretending Go can evaluate arbitrary
// host-language expressions.
type moduleStore struct {
	mu      sync.Mutex
	modules map[string]map[string]any
}

func newModuleStore() *moduleStore {
	return &moduleStore{modules: make(map[string]map[string]any)}
}

func (s *moduleStore) eval(module, expr string) (any, error) {
	expr = strings.TrimSpace(expr)

	if strings.HasPrefix(expr, "module ") {
		name := strings.TrimSpace(strings.TrimPrefix(expr, "module "))
		name = strings.TrimSuffix(name, " end")
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.modules[name]; !ok {
			s.modules[name] = make(map[string]any)
		}
		return nil, nil
	}

	if idx := strings.Index(expr, "="); idx >= 0 && !strings.HasPrefix(expr, "=") {
		lhs := strings.TrimSpace(expr[:idx])
		rhs := strings.TrimSpace(expr[idx+1:])
		modName, field, err := splitQualified(lhs, module)
		if err != nil {
			return nil, err
		}
		val, err := parseLiteral(rhs)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		ns, ok := s.modules[modName]
		if !ok {
			return nil, fmt.Errorf("sandboxworker: no module named %q", modName)
		}
		ns[field] = val
		return nil, nil
	}

	modName, field, err := splitQualified(expr, module)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.modules[modName]
	if !ok {
		return nil, fmt.Errorf("sandboxworker: no module named %q", modName)
	}
	v, ok := ns[field]
	if !ok {
		return nil, fmt.Errorf("sandboxworker: %s.%s is unbound", modName, field)
	}
	return v, nil
}

// splitQualified splits s into a module/field pair. s may name its
// module explicitly ("Module.field") or omit it, in which case
// defaultModule — the module argument eval was called with — supplies
// it, so "x" and "S.x" mean the same thing once the caller is already
// operating against module S.
func splitQualified(s, defaultModule string) (module, field string, err error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
	}
	if defaultModule == "" {
		return "", "", fmt.Errorf("sandboxworker: expected Module.field, got %q", s)
	}
	return defaultModule, strings.TrimSpace(s), nil
}

func parseLiteral(s string) (any, error) {
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2 {
		return strings.Trim(s, `"`), nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return s, nil
}
