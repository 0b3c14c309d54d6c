/*
Package patch implements the core rewrite pipeline for smali method blocks.

	+-------------+
	|   Patcher   |
	|  (Walker)   |
	+------+------+
	       |
	+------+------+
	|   Locate    |
	|  (Blocks)   |
	+------+------+
	       |
	+------+------+
	|  Transform  |
	|  (Chain)    |
	+------+------+
	       |
	+------+------+
	|   Splice    |
	|  (Offsets)  |
	+-------------+

🎯 Purpose:
- Walks a file or directory tree and applies one rewrite spec per run
- Splices transformed blocks back by recorded offset span
- Isolates per-file failures so one broken file never aborts the tree

🔄 Flow:
1. Stat the root (missing root is fatal for the invocation)
2. Per file: read once, fast-reject, scan, filter, transform
3. Splice changed blocks at their offsets on the original buffer
4. Write back atomically only when content actually changed

⚡ Key Responsibilities:
- Filename/extension/glob filtering during the walk
- Offset-based splicing (duplicate blocks cannot cross-talk)
- Per-file outcome records for logging and tests

🤝 Interfaces:
- locate: block discovery and selection
- transform: body transformation chain
- status: outcome tracking and atomic write-back
- log: console reporting of matches and writes

📝 Design Philosophy:
The patcher owns a file's buffer exclusively for the duration of one
run. Blocks carry their spans from the scanner, so replacement never
re-finds text and the engine stays single-threaded and deterministic.
The Runner layers an ordered list of specs on top; it never reorders
them, because dependent rewrites (widening registers before using
them) rely on caller-supplied order.
*/
package patch
