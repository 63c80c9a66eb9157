package version_test

import (
	"runtime/debug"
	"testing"

	"github.com/usnistgov/symoffload/core/testenv"
	"github.com/usnistgov/symoffload/core/version"
)

func TestFromBuildInfo(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	v := version.FromBuildInfo(nil, false)
	assert.Equal("development", v.String())
	assert.True(v.Dirty)

	bi := &debug.BuildInfo{
		GoVersion: "go1.21.5",
		Main:      debug.Module{Path: "github.com/usnistgov/symoffload", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs", Value: "git"},
			{Key: "vcs.revision", Value: "0123456789abcdef0123456789abcdef01234567"},
			{Key: "vcs.time", Value: "2024-03-05T06:07:08Z"},
			{Key: "vcs.modified", Value: "false"},
		},
	}
	v = version.FromBuildInfo(bi, true)
	assert.Equal("v0.0.0-20240305060708-0123456789ab", v.Version)
	assert.Equal("go1.21.5", v.Go)
	assert.False(v.Dirty)
	assert.Equal(2024, v.Date.Year())

	bi.Settings[3].Value = "true"
	assert.Equal("v0.0.0-20240305060708-0123456789ab+dirty", version.FromBuildInfo(bi, true).Version)

	bi.Main.Version = "v1.2.3"
	assert.Equal("v1.2.3", version.FromBuildInfo(bi, true).Version)

	bi.Settings = nil
	v = version.FromBuildInfo(bi, true)
	assert.Equal("v1.2.3", v.Version)
	assert.Equal("unknown", v.Commit)
}
