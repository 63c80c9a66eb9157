package yamlflag_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/usnistgov/symoffload/core/testenv"
	"github.com/usnistgov/symoffload/core/yamlflag"
)

type sampleConfig struct {
	Capacity int    `json:"capacity"`
	Name     string `json:"name"`
}

func TestYamlFlag(t *testing.T) {
	assert, require := testenv.MakeAR(t)

	var cfg sampleConfig
	v := yamlflag.New(&cfg)
	require.NoError(v.Set("capacity: 64\nname: A"))
	assert.Equal(64, cfg.Capacity)
	assert.Equal("A", cfg.Name)
	assert.JSONEq(`{"capacity":64,"name":"A"}`, v.String())

	filename := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(os.WriteFile(filename, []byte("capacity: 128\n"), 0o644))
	require.NoError(v.Set("@" + filename))
	assert.Equal(128, cfg.Capacity)
	assert.Same(&cfg, v.Get())

	assert.Error(v.Set("@" + filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(v.Set("capacty: 1"))
	assert.Error(v.Set("capacity: [1"))
	assert.Equal(128, cfg.Capacity)
	assert.Panics(func() { yamlflag.New(cfg) })
	assert.Panics(func() { yamlflag.New((*sampleConfig)(nil)) })
}
