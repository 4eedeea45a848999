//go:build !measxdebug

package measx

// debugChecks enables advisory consistency checks. Build with -tags measxdebug.
const debugChecks = false
