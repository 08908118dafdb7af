// Package agent implements the task orchestrator: it asks the completion
// backend to break an objective into tasks, lets an operator approve, edit
// or skip each one, executes approved tasks (calling tools when a result
// asks for one), persists every completed record, and reflects on results
// to queue follow-up work until the queue drains or the operator quits.
package agent
