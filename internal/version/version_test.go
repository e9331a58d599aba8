package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrent(t *testing.T) {
	b := Current()
	assert.NotEmpty(t, b.Version)
	assert.Equal(t, runtime.Version(), b.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, b.Platform)
	assert.Contains(t, Info(), "zenclaw ")
}

func TestFill_StampedValuesWin(t *testing.T) {
	b := Build{Version: "1.2.3", Commit: "abc1234567890", Date: "2026-01-15"}
	b.fill(&debug.BuildInfo{
		Main: debug.Module{Version: "v0.9.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "fffffff"},
			{Key: "vcs.time", Value: "2025-01-01T00:00:00Z"},
		},
	})
	assert.Equal(t, "1.2.3", b.Version)
	assert.Equal(t, "abc1234567890", b.Commit)
	assert.Equal(t, "2026-01-15", b.Date)
}

func TestFill_FromToolchain(t *testing.T) {
	b := Build{Version: "dev", Commit: "unknown", Date: "unknown"}
	b.fill(&debug.BuildInfo{
		Main: debug.Module{Version: "v0.4.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-03-02T10:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	assert.Equal(t, "v0.4.1", b.Version)
	assert.Equal(t, "0123456789abcdef", b.Commit)
	assert.Equal(t, "2026-03-02T10:00:00Z", b.Date)
	assert.True(t, b.Modified)

	assert.Contains(t, b.String(), "commit: 0123456-dirty")
}

func TestFill_DevelVersionIgnored(t *testing.T) {
	b := Build{Version: "dev"}
	b.fill(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	assert.Equal(t, "dev", b.Version)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "1234567", short("12345678"))
	assert.Equal(t, "1234567", short("1234567"))
	assert.Equal(t, "abc", short("abc"))
}
