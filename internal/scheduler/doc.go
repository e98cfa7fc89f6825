// Package scheduler keeps a set of named workloads within a fixed device
// memory budget. It is structured into small files by concern:
//
//   - scheduler.go: Scheduler type, Config, Register and slot bookkeeping.
//   - acquire.go: Acquire/Release/SetPriority.
//   - evict.go: eviction order and EvictAll/UnloadAll.
//   - status_report.go: Status snapshot for /status.
//   - usage_persist.go: optional JSON persistence of LRU usage.
//   - sweeper.go: cron driven idle eviction.
//   - ops.go: asynchronous warm-up operations.
//   - events.go, eventpub_memory.go: lifecycle events.
//
// A slot moves between three states: unloaded (no workload), materialized
// (loaded on the host but not counted against the budget) and resident
// (counted against the budget). All transitions happen under one mutex so
// the sum of resident sizes never exceeds BudgetMB-MarginMB.
package scheduler
