// Package versioncheck compares a storage root's recorded config schema
// version against the running binary's, the way the teacher's versioncheck
// package compares the installed CLI version against the latest GitHub
// release — same semver.Compare-based comparison, retargeted from
// "is my CLI outdated" to "was this storage root written by a newer/older
// Rewind" (spec.md §10, consumed by `rewind doctor`).
package versioncheck

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Compatibility is the outcome of comparing a storage root's schema
// version against the binary's.
type Compatibility int

const (
	// Same means the versions match exactly.
	Same Compatibility = iota
	// StorageNewer means the storage root was written by a newer binary
	// than the one running now.
	StorageNewer
	// StorageOlder means the storage root was written by an older binary;
	// it is expected to still be readable (the format is additive).
	StorageOlder
)

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// Check compares storageVersion (from config.json's schema_version) against
// binaryVersion (the running binary's understood schema version).
func Check(storageVersion, binaryVersion string) Compatibility {
	switch semver.Compare(canonical(storageVersion), canonical(binaryVersion)) {
	case 0:
		return Same
	case 1:
		return StorageNewer
	default:
		return StorageOlder
	}
}
