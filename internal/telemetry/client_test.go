package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBuildURL(t *testing.T) {
	c, err := NewClient(Config{
		BaseURL:   "https://api.example.com/api/query/signals",
		Token:     "tok",
		VehicleID: "gr24-main",
		TripID:    "4",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	raw := c.BuildURL([]string{" mobile_speed", "", "acu_cell1_temp "})
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "api.example.com", u.Host)
	assert.Equal(t, "/api/query/signals", u.Path)
	q := u.Query()
	assert.Equal(t, "gr24-main", q.Get("vehicle_id"))
	assert.Equal(t, "4", q.Get("trip_id"))
	assert.Equal(t, "mobile_speed,acu_cell1_temp", q.Get("signals"))
	assert.Equal(t, "tok", q.Get("token"))
}

func TestBuildURLOmitsEmptyToken(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://localhost:9/signals"}, nil)
	require.NoError(t, err)

	u, err := url.Parse(c.BuildURL([]string{"rpm"}))
	require.NoError(t, err)
	_, present := u.Query()["token"]
	assert.False(t, present)
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "mobile_speed", r.URL.Query().Get("signals"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"mobile_speed":[1,2,3]}`)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL + "/signals", VehicleID: "v", TripID: "1"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	resp, err := c.Get(context.Background(), c.BuildURL([]string{"mobile_speed"}))
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"mobile_speed":[1,2,3]}`, string(resp.Body))
}

func TestGetRejectsForeignHosts(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://127.0.0.1:1/signals"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	for _, target := range []string{
		"http://169.254.169.254/latest/meta-data",
		"https://127.0.0.1:1/signals",
		"file:///etc/passwd",
	} {
		_, err := c.Get(context.Background(), target)
		assert.True(t, errors.Is(err, ErrForbiddenURL), target)
	}
}

func TestGetErrorsDoNotExposeToken(t *testing.T) {
	// nothing listens on port 1
	c, err := NewClient(Config{
		BaseURL:   "http://127.0.0.1:1/api/query/signals",
		Token:     "SECRET-TOKEN",
		VehicleID: "v",
		TripID:    "4",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), c.BuildURL([]string{"mobile_speed"}))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")
	assert.Contains(t, err.Error(), "http://127.0.0.1:1/api/query/signals")

	_, err = c.Get(context.Background(), "http://169.254.169.254/latest?token=SECRET-TOKEN")
	require.ErrorIs(t, err, ErrForbiddenURL)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")

	_, err = c.Get(context.Background(), "http://127.0.0.1:1/%zz?token=SECRET-TOKEN")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")
}

func TestGetRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", 17))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL + "/signals", MaxBodyBytes: 16}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), c.BuildURL([]string{"rpm"}))
	assert.ErrorIs(t, err, ErrResponseTooLarge)

	c, err = NewClient(Config{BaseURL: srv.URL + "/signals", MaxBodyBytes: 17}, zaptest.NewLogger(t))
	require.NoError(t, err)

	resp, err := c.Get(context.Background(), c.BuildURL([]string{"rpm"}))
	require.NoError(t, err)
	assert.Len(t, resp.Body, 17)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	require.Error(t, err)

	_, err = NewClient(Config{BaseURL: "not a url"}, nil)
	require.Error(t, err)
}
