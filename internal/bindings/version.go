package bindings

import (
	"fmt"
	"strconv"
	"strings"
)

// CrateVersion is a crate version as reported by a version probe export.
// Probes pack it as major<<24 | minor<<16 | patch.
type CrateVersion struct {
	Major uint8
	Minor uint8
	Patch uint16
}

// UnpackCrateVersion decodes a probe result.
func UnpackCrateVersion(packed uint32) CrateVersion {
	return CrateVersion{
		Major: uint8(packed >> 24),
		Minor: uint8(packed >> 16),
		Patch: uint16(packed),
	}
}

// ParseCrateVersion parses "major.minor.patch". A leading "v" is accepted.
func ParseCrateVersion(s string) (CrateVersion, error) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(s), "v"), ".")
	if len(parts) != 3 {
		return CrateVersion{}, fmt.Errorf("invalid crate version %q: want major.minor.patch", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return CrateVersion{}, fmt.Errorf("invalid major version in %q: %w", s, err)
	}
	minor, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return CrateVersion{}, fmt.Errorf("invalid minor version in %q: %w", s, err)
	}
	patch, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return CrateVersion{}, fmt.Errorf("invalid patch version in %q: %w", s, err)
	}

	return CrateVersion{Major: uint8(major), Minor: uint8(minor), Patch: uint16(patch)}, nil
}

// Pack encodes v the way probes report it.
func (v CrateVersion) Pack() uint32 {
	return uint32(v.Major)<<24 | uint32(v.Minor)<<16 | uint32(v.Patch)
}

func (v CrateVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
