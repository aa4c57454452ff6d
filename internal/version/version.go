/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version carries the build version and polls GitHub for newer
// releases.
package version

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Version is stamped at build time via ldflags:
//
//	-X github.com/friendsincode/grimnir_player/internal/version.Version=X.Y.Z
var Version = "0.9.3"

// releasesURL is the endpoint polled for the newest published release.
const releasesURL = "https://api.github.com/repos/friendsincode/grimnir_player/releases/latest"

// UpdateInfo is the outcome of the most recent release poll.
type UpdateInfo struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	ReleaseURL      string
	CheckedAt       time.Time
}

// Checker polls for newer releases in the background. Polls are best
// effort: network failures leave the previous result in place.
type Checker struct {
	mu       sync.RWMutex
	latest   UpdateInfo
	logger   zerolog.Logger
	interval time.Duration
	client   *http.Client
	url      string
	cancel   context.CancelFunc
}

// NewChecker creates a release checker. It does nothing until Start.
func NewChecker(logger zerolog.Logger) *Checker {
	return &Checker{
		logger:   logger.With().Str("component", "update-checker").Logger(),
		interval: 6 * time.Hour,
		client:   &http.Client{Timeout: 10 * time.Second},
		url:      releasesURL,
		latest:   UpdateInfo{CurrentVersion: Version},
	}
}

// Start polls once immediately, then on the poll interval until the
// context is cancelled or Stop is called.
func (c *Checker) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.poll(ctx)

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.poll(ctx)
			}
		}
	}()
}

// Stop ends background polling.
func (c *Checker) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Info returns the most recent poll result.
func (c *Checker) Info() *UpdateInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info := c.latest
	return &info
}

func (c *Checker) poll(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		c.logger.Debug().Err(err).Msg("build release request")
		return
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "Grimnir-Player/"+Version)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Msg("fetch latest release")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().Int("status", resp.StatusCode).Msg("release endpoint status")
		return
	}

	var release struct {
		TagName string `json:"tag_name"`
		HTMLURL string `json:"html_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		c.logger.Debug().Err(err).Msg("decode release")
		return
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	info := UpdateInfo{
		CurrentVersion:  Version,
		LatestVersion:   latest,
		UpdateAvailable: parseSemver(Version).less(parseSemver(latest)),
		ReleaseURL:      release.HTMLURL,
		CheckedAt:       time.Now(),
	}

	c.mu.Lock()
	c.latest = info
	c.mu.Unlock()

	if info.UpdateAvailable {
		c.logger.Info().
			Str("current", Version).
			Str("latest", latest).
			Str("url", release.HTMLURL).
			Msg("new version available")
	}
}

// semver is a parsed major.minor.patch triple. Pre-release suffixes and
// missing components read as zero.
type semver [3]int

func parseSemver(v string) semver {
	var s semver
	parts := strings.SplitN(strings.TrimPrefix(v, "v"), ".", 3)
	for i, p := range parts {
		if cut := strings.IndexAny(p, "-+"); cut >= 0 {
			p = p[:cut]
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return s
		}
		s[i] = n
	}
	return s
}

func (s semver) less(o semver) bool {
	for i := range s {
		if s[i] != o[i] {
			return s[i] < o[i]
		}
	}
	return false
}
