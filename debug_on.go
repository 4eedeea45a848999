//go:build measxdebug

package measx

const debugChecks = true
