// Package render runs one Manim render attempt for a scene program.
//
// Executor.Render writes the program to a scratch file, locates the Scene
// subclass to render, runs the manim CLI under a per-attempt timeout, and
// moves the produced clip to the requested path. A nil error means the clip
// exists at that path; otherwise the error text is the renderer's own
// diagnostic output, suitable for feeding back into a correction prompt.
package render
