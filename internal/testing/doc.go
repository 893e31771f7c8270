// Package testing runs acceptance scenarios against a live oCIS server.
//
// Scenarios are YAML documents. Each names an ordered list of steps, the
// phrases understood by the step registry in internal/steps, and an
// optional list of cleanup steps that run even when a step fails:
//
//	name: upload-via-tus
//	tags: [tus]
//	steps:
//	  - When user "Alice" uploads file "textfile.txt" to "/upload.txt" via TUS inside of the space "Personal" using the WebDAV API
//	  - text: Then the HTTP status code should be "204"
//	    retry:
//	      count: 2
//	      delay: 1s
//
// The runner gives every scenario a fresh steps.ScenarioContext. When a
// scenario changed the server configuration the runner rolls it back after
// the cleanup steps. A failed rollback turns the scenario into an error.
//
// Scenarios tagged "env-config" change state other scenarios depend on and
// always run on their own, after any parallel batch.
//
// Results are PASSED, FAILED (an expectation did not hold), ERROR (the
// scenario could not be carried out) or SKIPPED. Reporters render them as
// console output, a quiet CI summary or JSON. TestMCPServer exposes the
// same runner as MCP tools over stdio.
package testing
