// Package conv converts between integer types without silent truncation.
// It guards values that come from outside the process, such as frame
// indices typed on the command line and object sizes reported by stores.
package conv
