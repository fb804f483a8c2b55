// Package engine holds the autopilot's decision logic: the rule set built
// from stored autonomous rules, the evaluator that turns a performance
// snapshot into at most one state-changing recommendation plus an optional
// promotion, and the detector that flags softer opportunities.
//
// Nothing in this package performs I/O. Callers load rules and snapshots,
// and execute what the evaluator recommends.
package engine
