// Package preflight provides readiness checks for the external programs,
// directories, and oracle endpoint clarifai depends on.
//
// RunAll backs the "clarifai check" command and the generate command's
// startup validation. Each check returns a Result instead of an error so the
// CLI can render every problem at once.
package preflight
