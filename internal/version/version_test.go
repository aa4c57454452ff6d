package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseSemver(t *testing.T) {
	tests := []struct {
		in   string
		want semver
	}{
		{in: "1.2.3", want: semver{1, 2, 3}},
		{in: "v1.2.3", want: semver{1, 2, 3}},
		{in: "1.2", want: semver{1, 2, 0}},
		{in: "2.0.0-rc1", want: semver{2, 0, 0}},
		{in: "garbage", want: semver{0, 0, 0}},
	}
	for _, tt := range tests {
		if got := parseSemver(tt.in); got != tt.want {
			t.Errorf("parseSemver(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSemverLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{a: "0.9.3", b: "0.10.0", want: true},
		{a: "0.9.3", b: "0.9.3", want: false},
		{a: "1.0.0", b: "0.9.9", want: false},
		{a: "0.9.3", b: "0.9.4", want: true},
	}
	for _, tt := range tests {
		if got := parseSemver(tt.a).less(parseSemver(tt.b)); got != tt.want {
			t.Errorf("less(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCheckerPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name":"v99.0.0","html_url":"https://example.com/rel"}`))
	}))
	defer srv.Close()

	c := NewChecker(zerolog.Nop())
	c.url = srv.URL
	c.poll(context.Background())

	info := c.Info()
	if !info.UpdateAvailable {
		t.Fatal("poll: updateAvailable = false, want true")
	}
	if info.LatestVersion != "99.0.0" {
		t.Errorf("poll: latestVersion = %q, want 99.0.0", info.LatestVersion)
	}
	if info.ReleaseURL != "https://example.com/rel" {
		t.Errorf("poll: releaseURL = %q", info.ReleaseURL)
	}
}

func TestCheckerPollFailureKeepsPrevious(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewChecker(zerolog.Nop())
	c.url = srv.URL
	c.poll(context.Background())

	info := c.Info()
	if info.UpdateAvailable {
		t.Error("poll: updateAvailable = true after failed poll")
	}
	if info.CurrentVersion != Version {
		t.Errorf("poll: currentVersion = %q, want %q", info.CurrentVersion, Version)
	}
}
