// Package version reports the archivefs build version.
//
// Release builds set Version, Commit and Date through -ldflags. Development
// builds fall back to the module version and VCS settings recorded by the
// Go toolchain.
package version
