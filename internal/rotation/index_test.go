package rotation

import "testing"

func TestServerIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		marker string
		want   string
	}{
		{"arma3-koth-reforged-3-1", DefaultNameMarker, "3"},
		{"koth3-koth-reforged-12-1", DefaultNameMarker, "12"},
		{"plain-server", DefaultNameMarker, "1"},
		{"reforged-2", DefaultNameMarker, "1"},
		{"arma3-koth-reforged-3-1", "", "1"},
		{"game-eu-4-1", "eu", "4"},
	}
	for _, tt := range tests {
		if got := ServerIndex(tt.name, tt.marker); got != tt.want {
			t.Fatalf("ServerIndex(%q, %q) = %q, want %q", tt.name, tt.marker, got, tt.want)
		}
	}
}
