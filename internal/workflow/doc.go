// Package workflow turns a concept into a finished video.
//
// The Orchestrator runs one job: it plans scenes, drives each scene through
// the repair loop in index order, stops at the first scene that cannot be
// rendered, and assembles the clips once every scene has succeeded. The
// Manager accepts generation requests, enforces a single in-flight job per
// owner, runs each job on its own goroutine with a heartbeat, and sends the
// completion notifications and uploads once a job reaches a terminal state.
package workflow
