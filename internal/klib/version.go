package klib

import (
	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"

	"klibexport/internal/diag"
)

const (
	// FormatVersion is the linkdata header format this reader understands.
	FormatVersion = 1
	// SupportedABI is the accepted manifest abi_version range.
	SupportedABI = ">= 1.4.0, < 2.0.0"
	// DefaultABIVersion is written by the encoder when a module carries none.
	DefaultABIVersion = "1.8.0"
)

var abiConstraint = mustConstraint(SupportedABI)

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// CheckABIVersion validates a manifest abi_version value.
func CheckABIVersion(path, v string) error {
	ver, err := semver.NewVersion(v)
	if err != nil {
		return readErrorf(path, diag.ReadUnsupportedVersion, "invalid abi_version %q: %v", v, err)
	}
	if !abiConstraint.Check(ver) {
		err := readErrorf(path, diag.ReadUnsupportedVersion, "abi_version %s is outside the supported range %s", ver, SupportedABI)
		return errors.WithHint(err, "rebuild the library with a compiler producing a compatible klib ABI")
	}
	return nil
}

func checkFormatVersion(path string, v uint64) error {
	if v != FormatVersion {
		err := readErrorf(path, diag.ReadUnsupportedVersion, "linkdata format version %d, expected %d", v, FormatVersion)
		return errors.WithHint(err, "the library was produced by an incompatible writer")
	}
	return nil
}
