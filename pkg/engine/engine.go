// Package engine provides the Lisp evaluation engine for voxloom scripts.
// It wraps zygomys in a sandboxed environment and replays a script's
// edits against a fresh editing session.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/chazu/voxloom/pkg/config"
	"github.com/chazu/voxloom/pkg/kernel/sdfx"
	"github.com/chazu/voxloom/pkg/logging"
	"github.com/chazu/voxloom/pkg/session"
	"github.com/chazu/voxloom/pkg/tessellate"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Result is the output of a successful evaluation: the session the script
// edited and the instance sink mirroring its cells.
type Result struct {
	Session *session.Session
	Sink    *tessellate.InstanceSink
}

// Count returns the number of occupied cells.
func (r *Result) Count() int {
	if r == nil || r.Session == nil {
		return 0
	}
	return r.Session.Len()
}

// Engine wraps the zygomys interpreter for voxloom scripts.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandbox and session for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	settings   config.Settings
}

// NewEngine creates an Engine whose scripts start from config.Default.
func NewEngine() *Engine {
	return NewEngineWithSettings(config.Default())
}

// NewEngineWithSettings creates an Engine whose scripts start from s.
func NewEngineWithSettings(s config.Settings) *Engine {
	return &Engine{settings: s}
}

// SetSettings replaces the settings later evaluations start from.
func (e *Engine) SetSettings(s config.Settings) {
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
}

// Evaluate runs Lisp source against a fresh session.
//
// Return semantics:
//   - On success: returns result + nil errors + nil error
//   - On parse/eval failure: returns nil result + eval errors + nil error
//   - On fatal failure (timeout, panic, bad settings): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*Result, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	settings := e.settings
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		res, evalErrs, err := evaluate(source, settings)
		ch <- evalResult{result: res, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func evaluate(source string, settings config.Settings) (*Result, []EvalError, error) {
	sink := tessellate.NewInstanceSink()
	sess, err := session.New(settings, sink)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: %w", err)
	}
	res := &Result{Session: sess, Sink: sink}

	// Empty source is a valid program that produces an empty session.
	if strings.TrimSpace(source) == "" {
		return res, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	rec := registerBuiltins(env, sess, sdfx.New())

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		evalErrs := parseZygomysError(err)
		if rec.err != nil {
			evalErrs[0].Message = rec.err.Error()
		}
		return nil, evalErrs, nil
	}

	logging.Logger().Info("script evaluated",
		"session", sess.ID().String(),
		"cells", sess.Len(),
		"fingerprint", fmt.Sprintf("%016x", sess.Fingerprint()))
	return res, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
