package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdtarifa/internal/buildinfo"
	"github.com/tphakala/birdtarifa/internal/conf"
	"github.com/tphakala/birdtarifa/internal/errors"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("BIRDTARIFA_PREFS", "memory")
	t.Setenv("BIRDTARIFA_LOGGING_CONSOLE_ENABLED", "false")
}

func TestInit_BuildsServices(t *testing.T) {
	setupEnv(t)
	t.Setenv("BIRDTARIFA_API_URL", "http://backend.test:9000/")

	v, err := conf.New("")
	require.NoError(t, err)

	var out bytes.Buffer
	a := New(buildinfo.NewContext("2.0.0", ""), WithOutput(&out, &out))
	require.NoError(t, a.Init(v))
	t.Cleanup(a.Close)

	require.NotNil(t, a.Client)
	assert.Equal(t, "http://backend.test:9000", a.Client.BaseURL())
	require.NotNil(t, a.Prefs)
	require.NotNil(t, a.Metrics)
	assert.Empty(t, a.Publishers(), "no publisher is enabled by default")

	require.NoError(t, a.Prefs.Set("k", "v"))
	got, ok := a.Prefs.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestInit_InvalidSettings(t *testing.T) {
	setupEnv(t)
	t.Setenv("BIRDTARIFA_SIGHTINGS_LIMIT", "1000")

	v, err := conf.New("")
	require.NoError(t, err)

	a := New(buildinfo.NewContext("2.0.0", ""))
	err = a.Init(v)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.Contains(t, err.Error(), "sightings.limit")
	assert.Nil(t, a.Client)
}

func TestFail(t *testing.T) {
	var out bytes.Buffer
	a := New(buildinfo.NewContext("2.0.0", ""), WithOutput(&out, &out))

	assert.NoError(t, a.Fail(nil, "ignored"))
	assert.Empty(t, out.String())

	err := a.Fail(errors.NewStd("boom"), "Could not save.")
	require.Error(t, err)
	assert.True(t, IsReported(err))
	assert.Contains(t, out.String(), "Could not save.")

	out.Reset()
	err = a.Fail(errors.NewFieldError("zone", "Zone is required."), "")
	assert.True(t, IsReported(err))
	assert.Contains(t, out.String(), "Zone is required.")

	assert.False(t, IsReported(errors.NewStd("plain")))
}

func TestBeforeInit(t *testing.T) {
	var out bytes.Buffer
	a := New(buildinfo.NewContext("2.0.0", ""), WithOutput(&out, &out))

	called := false
	require.NoError(t, a.Track("noop", func() error {
		called = true
		return nil
	}))
	assert.True(t, called)

	a.Finish()
	assert.Empty(t, out.String())
	assert.NotNil(t, a.Spinner())

	a.Close()
	a.Close()
}

func TestFinish_PrintsSummaryWhenEnabled(t *testing.T) {
	setupEnv(t)
	t.Setenv("BIRDTARIFA_METRICS_SUMMARY", "true")

	v, err := conf.New("")
	require.NoError(t, err)

	var out bytes.Buffer
	a := New(buildinfo.NewContext("2.0.0", ""), WithOutput(&out, &out))
	require.NoError(t, a.Init(v))
	t.Cleanup(a.Close)

	// Nothing was requested yet, so the summary is empty.
	a.Finish()
	assert.NotContains(t, out.String(), "Backend requests")
}
