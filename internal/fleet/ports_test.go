package fleet

import (
	"slices"
	"testing"
)

func TestParseNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{" a , b,,c ", []string{"a", "b", "c"}},
		{"a,b,a", []string{"a", "b"}},
	}
	for _, tt := range tests {
		if got := ParseNames(tt.in); !slices.Equal(got, tt.want) {
			t.Fatalf("ParseNames(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
