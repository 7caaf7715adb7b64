package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogTransportOmitsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	client := &http.Client{Transport: LogTransport(logger, nil)}

	resp, err := client.Get(srv.URL + "/api/matchmaking/status?token=secret")
	require.NoError(t, err)
	resp.Body.Close()

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "/api/matchmaking/status", entry.Data["path"])
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	for _, v := range entry.Data {
		assert.NotContains(t, v, "secret")
	}
}

func TestLogTransportReportsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	client := &http.Client{Transport: LogTransport(logger, nil)}

	_, err := client.Get("http://127.0.0.1:1/unreachable")
	require.Error(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestChannelLogHelpers(t *testing.T) {
	logger, hook := test.NewNullLogger()
	LogChannelOpen(logger, "c1", "ws://x/ws?token=***")
	LogChannelClose(logger, "c1", 1006, assert.AnError)

	require.Len(t, hook.Entries, 2)
	assert.Equal(t, "c1", hook.Entries[1].Data["conn"])
	assert.Equal(t, 1006, hook.Entries[1].Data["code"])
}
