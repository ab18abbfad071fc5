// Package runner contains the execution engine that drives agent graphs.
// A run repeatedly invokes the current agent's model, interprets the
// response, executes tool calls, applies handoffs and terminates when an
// agent produces plain final output. The runner owns turn accounting,
// lifecycle hook dispatch, session persistence, trace recording and the
// streaming variant of the loop; agents, tools and models are data it
// operates on.
package runner
