package exports

import (
	"errors"
	"os"
)

var errViolation = errors.New("violation")

func violation(err error) {
	panic(err)
}

//export native_ok
func native_ok(a, b int32) int32 {
	return a + b
}

//export native_panics
func native_panics(p *byte) {
	if p == nil {
		panic("nil pointer") // want "avoid panic in exported function native_panics"
	}
}

//export native_exits
func native_exits() {
	os.Exit(1) // want "avoid os.Exit in exported function native_exits"
}

//export native_deferred
func native_deferred() {
	defer func() {
		panic(errViolation) // want "avoid panic in exported function native_deferred"
	}()
}

//export native_delegates
func native_delegates() {
	violation(errViolation)
}

// notExported may panic freely.
func notExported() {
	panic("fine")
}

func shadowed() {
	panic := func(string) {}
	panic("not the builtin")
}

//export native_shadowed
func native_shadowed() {
	panic := func(string) {}
	panic("not the builtin")
}
