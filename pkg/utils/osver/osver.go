// Package osver reads the macOS product version.
package osver

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"howett.net/plist"
)

const systemVersionPlist = "/System/Library/CoreServices/SystemVersion.plist"

var (
	cachedVersion Version
	cachedErr     error
	initOnce      sync.Once
)

// Version represents a macOS version with major, minor, and patch components.
type Version struct {
	Major int
	Minor int
	Patch int
}

// String returns the string representation of a Version.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Get returns the current macOS system version.
// The version is retrieved once and cached for subsequent calls.
func Get() (Version, error) {
	initOnce.Do(func() {
		b, err := os.ReadFile(systemVersionPlist)
		if err != nil {
			cachedErr = pkgerrors.Wrapf(err, "failed to read %s", systemVersionPlist)
			return
		}
		cachedVersion, cachedErr = ParseSystemVersion(b)
	})
	return cachedVersion, cachedErr
}

type systemVersion struct {
	ProductVersion string `plist:"ProductVersion"`
}

// ParseSystemVersion extracts the product version from the contents of
// SystemVersion.plist.
func ParseSystemVersion(b []byte) (Version, error) {
	var sv systemVersion
	if _, err := plist.Unmarshal(b, &sv); err != nil {
		return Version{}, pkgerrors.Wrap(err, "failed to parse system version plist")
	}
	if sv.ProductVersion == "" {
		return Version{}, fmt.Errorf("system version plist has no ProductVersion")
	}
	return Parse(sv.ProductVersion)
}

// Parse converts a version string into a Version struct.
// Format should be "major.minor.patch" or "major.minor".
func Parse(version string) (Version, error) {
	parts := strings.Split(version, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid version format: %s", version)
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("invalid major version: %s", parts[0])
	}

	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return Version{}, fmt.Errorf("invalid minor version: %s", parts[1])
	}

	patch := 0
	if len(parts) == 3 {
		patch, err = strconv.Atoi(parts[2])
		if err != nil {
			return Version{}, fmt.Errorf("invalid patch version: %s", parts[2])
		}
	}

	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

// Compare compares two versions and returns:
// -1 if v < other
// 0 if v == other
// 1 if v > other
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return sign(v.Major - other.Major)
	case v.Minor != other.Minor:
		return sign(v.Minor - other.Minor)
	default:
		return sign(v.Patch - other.Patch)
	}
}

func sign(i int) int {
	switch {
	case i < 0:
		return -1
	case i > 0:
		return 1
	}
	return 0
}

// AtLeast returns true if this version is greater than or equal to the specified version.
func (v Version) AtLeast(other Version) bool {
	return v.Compare(other) >= 0
}
