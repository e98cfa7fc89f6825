// Package service wires the scheduler, the provider orchestrator and the
// corrective-retry handler from configuration and exposes them to the HTTP
// layer.
//
//   - service.go: Service type, construction and shutdown.
//   - build.go: provider and slot registration from config.
//   - api.go: request entry points used by httpapi.
//   - tools.go: built-in tools available to the agent loop.
//   - events.go: scheduler events to structured logs.
package service
