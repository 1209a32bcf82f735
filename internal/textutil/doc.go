// Package textutil holds small string helpers shared by the CLI, the repair
// loop, and the filesystem layout code.
//
// Tokens produced by SanitizeToken are safe as single path segments and are
// used for owner lock files and per-job work directories. DisplayTitle
// title-cases concept names for notifications and status output.
package textutil
