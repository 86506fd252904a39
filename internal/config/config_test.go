package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func inTempDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	wd, err := os.Getwd()
	require.Nil(t, err)
	require.Nil(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestDefaults(t *testing.T) {
	require := require.New(t)
	inTempDir(t)
	for _, k := range []string{"SERVER", "PORT", "TIMEOUT", "INTERVAL"} {
		t.Setenv(Prefix+"_"+k, "")
		require.Nil(os.Unsetenv(Prefix + "_" + k))
	}

	config, err := GetConfig()
	require.Nil(err)
	require.Equal("127.0.0.1", config.Server)
	require.Equal(20516, config.Port)
	require.Equal(100*time.Second, config.RequestTimeout())

	interval, err := config.PollInterval()
	require.Nil(err)
	require.Equal(time.Second, interval)
}

func TestEnvironmentOverrides(t *testing.T) {
	require := require.New(t)
	inTempDir(t)

	t.Setenv("LIGHTSCHED_SERVER", "sched.lan")
	t.Setenv("LIGHTSCHED_PORT", "8080")
	t.Setenv("LIGHTSCHED_TIMEOUT", "5")
	t.Setenv("LIGHTSCHED_INTERVAL", "250ms")

	config, err := GetConfig()
	require.Nil(err)
	require.Equal("sched.lan", config.Server)
	require.Equal(8080, config.Port)
	require.Equal(5*time.Second, config.RequestTimeout())

	interval, _ := config.PollInterval()
	require.Equal(250*time.Millisecond, interval)
}

func TestDotEnvFile(t *testing.T) {
	require := require.New(t)
	dir := inTempDir(t)

	t.Setenv("LIGHTSCHED_SERVER", "")
	require.Nil(os.Unsetenv("LIGHTSCHED_SERVER"))
	require.Nil(os.WriteFile(filepath.Join(dir, ".env"), []byte("LIGHTSCHED_SERVER=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("LIGHTSCHED_SERVER") })

	config, err := GetConfig()
	require.Nil(err)
	require.Equal("from-dotenv", config.Server)
}

func TestValidation(t *testing.T) {
	require := require.New(t)

	valid := ConfigSpec{Server: "s", Port: 1, Timeout: 1, Interval: "1s"}
	require.Nil(valid.Validate())

	c := valid
	c.Port = 70000
	require.NotNil(c.Validate())

	c = valid
	c.Timeout = 0
	require.NotNil(c.Validate())

	c = valid
	c.Interval = "soon"
	require.NotNil(c.Validate())

	c = valid
	c.Server = ""
	require.NotNil(c.Validate())
}
