package main

import (
	"runtime/debug"
	"testing"
)

func TestResolveVersion(t *testing.T) {
	tests := []struct {
		name    string
		ldflags string
		info    *debug.BuildInfo
		want    string
	}{
		{"release build stamps the tag", "v0.4.0", &debug.BuildInfo{Main: debug.Module{Version: "v0.0.0"}}, "v0.4.0"},
		{"go install uses the module version", "dev", &debug.BuildInfo{Main: debug.Module{Version: "v0.4.1"}}, "v0.4.1"},
		{"local checkout reports dev", "dev", &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, "dev"},
		{"empty module version reports dev", "dev", &debug.BuildInfo{}, "dev"},
		{"missing build info reports dev", "dev", nil, "dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveVersion(tt.ldflags, tt.info); got != tt.want {
				t.Errorf("storyarchive --version should print %q, got %q", tt.want, got)
			}
		})
	}
}
