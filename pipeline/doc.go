// Package pipeline intercepts storage calls and routes them through an
// ordered chain of strategies before they reach the real backend.
//
// Each call walks the chain outer to inner. A strategy's pre hook may
// rewrite the request for everything further in, or short-circuit the call
// with a synthesized response; at most one strategy short-circuits, and the
// strategies inside it never see the call. Post hooks unwind in reverse,
// each observing the request exactly as its own pre hook left it. A backend
// error propagates without running any post hook.
package pipeline
