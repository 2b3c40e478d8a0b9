package runtime

import (
	"fmt"
	"runtime/debug"
)

// Catch calls fn and turns a panic into an error carrying the stack.  It
// should be wrapped around the top of every query evaluation so an engine
// defect fails the query instead of the process.
func Catch(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %+v\n%s\n", r, debug.Stack())
		}
	}()
	return fn()
}
