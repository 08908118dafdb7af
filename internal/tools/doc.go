// Package tools implements the registry that task results call into with
// "TOOL: name: arg", together with the built-in tool library.
//
// Every tool takes one string argument and returns text or an error;
// multi-part arguments are joined with "::". Registry.Dispatch never fails:
// unknown tools, tool errors and panics all come back as a failed Outcome
// whose text is spliced into the task result.
package tools
