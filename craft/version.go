package craft

import "github.com/blang/semver"

// Version is the release of the craft2 binary and server.
var Version = semver.MustParse("0.3.0")

// SnapshotVersion is the version of the stored snapshot encoding.  Snapshots written with a
// different major version cannot be loaded.
var SnapshotVersion = semver.MustParse("1.0.0")

// CompatibleSnapshot returns true if a snapshot written at version v can be read.
func CompatibleSnapshot(v semver.Version) bool {
	return v.Major == SnapshotVersion.Major
}
