// Package hooking lets observers attach to the points where engines report
// what they do.
package hooking

import "log"

// HookPos names a point that hooks can be invoked at.
type HookPos struct {
	Name string
}

// HookCtx describes one invocation. Item is the main subject, such as an
// event or a task record; Detail carries extra data some positions provide.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// A Hook is invoked synchronously by the object it is attached to.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// OnlyAt wraps a hook so that it only sees the given positions.
func OnlyAt(h Hook, positions ...*HookPos) Hook {
	return HookFunc(func(ctx HookCtx) {
		for _, p := range positions {
			if ctx.Pos == p {
				h.Func(ctx)
				return
			}
		}
	})
}

// Hookable is an object that hooks can be attached to.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
}

// HookableBase implements Hookable. Hooks run in the order they were
// attached.
type HookableBase struct {
	hooks []Hook
}

// AcceptHook attaches a hook. Attaching the same hook object twice panics;
// function hooks cannot be compared and are always accepted.
func (b *HookableBase) AcceptHook(hook Hook) {
	if _, isFunc := hook.(HookFunc); !isFunc {
		for _, h := range b.hooks {
			if h == hook {
				log.Panicf("hook %T attached twice", hook)
			}
		}
	}

	b.hooks = append(b.hooks, hook)
}

// NumHooks returns the number of attached hooks.
func (b *HookableBase) NumHooks() int {
	return len(b.hooks)
}

// Hooks returns the attached hooks.
func (b *HookableBase) Hooks() []Hook {
	return b.hooks
}

// InvokeHook runs every attached hook with ctx.
func (b *HookableBase) InvokeHook(ctx HookCtx) {
	for _, h := range b.hooks {
		h.Func(ctx)
	}
}
