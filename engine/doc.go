// Package engine executes a validated protocol plan against an execution
// context and aggregates the outcome into a ResultDocument.
//
// Every (family, invocation, channel) triple of the plan becomes exactly one
// Record, in plan order, whatever the worker count. A method that fails,
// panics or returns something other than its declared metrics yields a
// contract_violation record and the run continues. When the run deadline
// expires, invocations that did not finish are recorded as not_executed and
// the partial document is returned.
//
// Visualization payloads are collected into a separate
// VisualizationDocument and never appear in the ResultDocument.
package engine
