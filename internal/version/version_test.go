package version_test

import (
	"context"
	"net/http"
	"runtime"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/paysend/internal/version"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

const latestURL = "https://api.test/repos/mrz1836/paysend/releases/latest"

func newChecker(mt *httpmock.MockTransport) *version.Checker {
	return version.NewChecker(
		version.WithBaseURL("https://api.test/"),
		version.WithHTTPClient(&http.Client{Transport: mt}),
	)
}

func TestChecker_Latest(t *testing.T) {
	t.Parallel()

	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, latestURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "application/vnd.github+json", req.Header.Get("Accept"))
		assert.Contains(t, req.Header.Get("User-Agent"), "paysend/")
		return httpmock.NewStringResponse(http.StatusOK, `{"tag_name":"v1.4.0","name":"1.4.0"}`), nil
	})

	rel, err := newChecker(mt).Latest(context.Background(), "mrz1836", "paysend")
	require.NoError(t, err)
	assert.Equal(t, "v1.4.0", rel.TagName)
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestChecker_LatestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		owner     string
		responder httpmock.Responder
		want      error
	}{
		{"bad owner", "../etc", nil, payerr.ErrInvalidInput},
		{"not found", "mrz1836", httpmock.NewStringResponder(http.StatusNotFound, `{}`), payerr.ErrNetworkError},
		{"bad body", "mrz1836", httpmock.NewStringResponder(http.StatusOK, `{`), payerr.ErrInvalidFormat},
		{"transport", "mrz1836", httpmock.NewErrorResponder(assert.AnError), payerr.ErrNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mt := httpmock.NewMockTransport()
			if tt.responder != nil {
				mt.RegisterResponder(http.MethodGet, latestURL, tt.responder)
			}
			_, err := newChecker(mt).Latest(context.Background(), tt.owner, "paysend")
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"v1.2.4", "1.2.3", 1},
		{"1.2.3", "1.10.0", -1},
		{"2.0.0-rc1", "1.9.9", 1},
		{"dev", "0.0.1", -1},
		{"0.0.1", "dev", 1},
		{"dev", "", 0},
		{"abc1234", "1.0.0", -1},
		{"1.2", "1.2.0", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, version.Compare(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}

	assert.True(t, version.IsNewer("1.0.0", "v1.1.0"))
	assert.False(t, version.IsNewer("1.1.0", "1.1.0"))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.2.3", version.Normalize(" v1.2.3-dirty "))
	assert.Equal(t, "1.2.3", version.Normalize("1.2.3+build.7"))
}

func TestCurrent(t *testing.T) {
	t.Parallel()

	b := version.Current()
	assert.Equal(t, version.Version, b.Version)
	assert.Equal(t, runtime.Version(), b.Go)
	assert.Equal(t, runtime.GOOS, b.OS)
}
