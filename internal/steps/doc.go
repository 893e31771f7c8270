// Package steps maps scenario phrases to the code that performs them.
//
// Phrases are matched against an explicit table of regular expressions
// registered at startup. Each handler receives the per-scenario state in a
// ScenarioContext and the capture groups of its pattern. A phrase matching
// no pattern, or more than one, is an undefined step.
//
// Handlers report assertion failures as *AssertionError so the runner can
// tell a failed scenario from one that could not run.
package steps
