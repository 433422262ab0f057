package buildinfo

import "testing"

func TestRelease(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info Info
		want string
	}{
		{"version only", Info{Version: "v1.2.0"}, "openct@v1.2.0"},
		{"short commit", Info{Version: "v1.2.0", Commit: "abc"}, "openct@v1.2.0+abc"},
		{"long commit truncated", Info{Version: "dev", Commit: "0123456789abcdef"}, "openct@dev+0123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.info.Release(); got != tt.want {
				t.Errorf("Release() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetDefaultsVersion(t *testing.T) {
	t.Parallel()
	if Get().Version == "" {
		t.Error("Get().Version should never be empty")
	}
}
