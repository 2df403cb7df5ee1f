package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/homeswipe/internal/config"
)

// useTestConfig installs a sqlite-backed config rooted in a temp dir.
func useTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(dir, "homeswipe.db")
	c.Scrape.SourceFile = filepath.Join(dir, "listings.yaml")
	c.Scrape.ScheduleInterval = time.Hour
	c.Scrape.MaxConsecutiveFailures = 5
	c.Reconcile.RetirementGrace = 24 * time.Hour
	c.Alerts.InterestPolicy = "all"
	c.Server.Port = 8080
	c.Monitoring.LookbackWindowHours = 24
	cfg = c
	t.Cleanup(func() { cfg = nil })
	return c
}

func writeListings(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}
