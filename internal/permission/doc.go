// Package permission decides, for every action an agent proposes against a
// document, whether it is allowed, denied, budget-limited, or must pause for
// human approval.
//
// # Pipeline
//
// Evaluate runs a fixed pipeline: permission lookup (missing record fails
// closed), document-scope globs, capability flags, word budgets, cost
// budgets, working hours, and finally the evaluator for the agent's
// autonomy level. The first check that fails short-circuits with a
// human-readable reason; budget failures carry a retry-after hint or the
// remaining budget.
//
// # Autonomy levels
//
// Each of the four levels is its own Evaluator implementation behind a
// common interface, registered in a dispatch table:
//
//   - assistant: everything needs approval, scoped to the action
//   - collaborative: research is free, minor edits may auto-approve,
//     other content mutations need paragraph-scoped approval
//   - semi_autonomous: moderate writes/edits are free, large ones need
//     section-scoped approval, deletes always need sign-off
//   - fully_autonomous: content operations are free; document-scale
//     deletes and ungranted external API calls still need approval
//
// # Check vs. record
//
// Evaluate never mutates usage counters. The caller records actual usage
// through the usage tracker only after the action executed, so rejected or
// failed actions are never charged.
//
// # Caching
//
// Permission records are cached with a short TTL. UpdatePermissions
// invalidates the cache entry synchronously before returning, giving
// read-after-write consistency for that key.
package permission
