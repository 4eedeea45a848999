// Package fs stages files written by measx: cached downloads of remote
// recordings and local exports. A [Staged] file becomes visible under its
// final name only after a successful Commit.
//
// [Faulty] wraps a [FileSystem] and fails selected operations so tests can
// check that a broken download or export leaves nothing behind:
//
//	faulty := fs.NewFaulty(nil)
//	faulty.Inject(".part", fs.Fault{Ops: fs.OpSync})
package fs
