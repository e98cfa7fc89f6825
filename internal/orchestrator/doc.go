// Package orchestrator walks an ordered chain of inference providers for each
// logical request. It is structured into small files by concern:
//
//   - builder.go: explicit provider registration and chain configuration.
//   - orchestrator.go: chain selection, text generation, sessions.
//   - history.go: bounded conversation history shared by one session.
//   - tools.go: the tool-calling loop.
//   - vision.go: image prompts over vision-capable providers.
//   - admission.go: optional per-provider concurrency gate.
//   - errors.go: error types and helpers (IsExhausted, IsNoProvider).
//
// Providers are always tried one after another inside a request; a failure
// moves on to the next candidate and only the exhaustion of the whole chain is
// reported to the caller.
package orchestrator
