// Package deps reports whether the external binaries reelsmith shells out to
// are installed.
package deps
