package vm

import (
	"fmt"

	"github.com/uqbar-project/wollok-go/model"
)

// ---------------------------------------------------------------------------
// Program and test entry points
// ---------------------------------------------------------------------------

// RunProgram runs the program with the given fully-qualified name to
// completion.
func (e *Evaluation) RunProgram(fqn string) error {
	node, ok := e.env.ByFqn(fqn)
	if !ok {
		return fmt.Errorf("vm: no program %s", fqn)
	}
	program, ok := node.(*model.Program)
	if !ok {
		return fmt.Errorf("vm: %s is a %s, not a program", fqn, node.Kind())
	}
	depth := len(e.frames)
	frame := NewFrame(e.codeFor(program), NewContext(e.root), e.cfg.MaxOperandStackSize, fqn)
	frame.sink = true
	if err := e.pushFrame(frame); err != nil {
		return err
	}
	return e.stepUntil(depth)
}

// TestResult reports one test run.
type TestResult struct {
	Fqn    string
	Passed bool
	Err    error
}

// RunTests runs every test of the environment, each in an isolated copy of
// this evaluation so fixture state cannot leak between tests.
func (e *Evaluation) RunTests() []TestResult {
	var results []TestResult
	for _, test := range e.env.Tests() {
		fqn := model.FullyQualifiedName(test)
		isolated := e.Copy()
		frame := NewFrame(isolated.codeFor(test), NewContext(isolated.root), isolated.cfg.MaxOperandStackSize, fqn)
		frame.sink = true
		result := TestResult{Fqn: fqn, Passed: true}
		if err := isolated.pushFrame(frame); err != nil {
			result.Passed = false
			result.Err = err
		} else if err := isolated.StepAll(); err != nil {
			result.Passed = false
			result.Err = err
		}
		if result.Passed {
			log.Infof("test passed: %s", fqn)
		} else {
			log.Errorf("test failed: %s: %v", fqn, result.Err)
		}
		results = append(results, result)
	}
	return results
}
