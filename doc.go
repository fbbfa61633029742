// Package vfsglue is the reusable dispatch and lookup runtime shared by
// every concrete filesystem server behind a VFS front-end.
//
// A concrete filesystem server (for example a FAT server built on the
// sibling fat package) supplies a Backend and a BulkOps implementation and
// calls Register to join the VFS front-end. From then on the dispatch loop
// drains inbound requests, the lookup engine walks paths through the Path
// Lookup Buffer on the server's behalf (forwarding across mount points as
// needed), and the instance registry keeps per-service state for the
// backend to retrieve by service ID.
package vfsglue
