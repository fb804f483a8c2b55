// Package autopilot runs the campaign optimization loop.
//
// The Orchestrator snapshots every active campaign, asks the engine for a
// decision, hands recommendations to the Executor and detected
// opportunities to the OpportunityService, and folds the results into a
// RunSummary. The Executor is the only code that mutates a campaign; the
// RollbackManager restores the state an executed action captured.
//
// Storage is reached through the interfaces in repository.go.
// Implementations live in repository/postgres/ and repository/memory/.
package autopilot
