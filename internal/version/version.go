/*

This file reads the service's own version once at startup and answers
the ping endpoint's compatibility check against a client version.

*/

package version

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Version is a parsed major.minor.patch version string.
type Version struct {
	Major, Minor, Patch int
}

var current Version

// Load reads path (typically "VERSION") once at startup and parses it.
func Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read version file: %w", err)
	}

	v, err := Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("failed to parse version file: %w", err)
	}
	current = v
	return nil
}

// Current returns the version loaded at startup.
func Current() Version {
	return current
}

// Parse parses a "major.minor.patch" string.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("version %q must have three dot-separated components", s)
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("invalid major version %q: %w", parts[0], err)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return Version{}, fmt.Errorf("invalid minor version %q: %w", parts[1], err)
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return Version{}, fmt.Errorf("invalid patch version %q: %w", parts[2], err)
	}

	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

// String renders the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible checks a client version against the server's. major and
// minor must match exactly; the client's patch may be less than or
// equal to the server's. A client with a higher patch is still
// compatible but gets an informational message.
func Compatible(clientVersion string) (bool, string) {
	client, err := Parse(clientVersion)
	if err != nil {
		return false, fmt.Sprintf("invalid client version: %s", err)
	}

	if client.Major != current.Major || client.Minor != current.Minor {
		return false, fmt.Sprintf("client version %s is incompatible with server version %s", client, current)
	}

	if client.Patch > current.Patch {
		return true, "client is on a non-master branch"
	}

	return true, ""
}
