package rotation

import "strings"

// DefaultNameMarker is the container name token that enables index
// derivation.
const DefaultNameMarker = "reforged"

// defaultIndex is used for names outside the naming convention.
const defaultIndex = "1"

// ServerIndex derives the server index from a container name. Names that
// contain the marker token and split into at least three "-" separated parts
// use the second-to-last part ("arma3-koth-reforged-3-1" -> "3"); every
// other name maps to "1".
func ServerIndex(containerName, marker string) string {
	if marker == "" || !strings.Contains(containerName, marker) {
		return defaultIndex
	}
	parts := strings.Split(containerName, "-")
	if len(parts) >= 3 {
		return parts[len(parts)-2]
	}
	return defaultIndex
}
