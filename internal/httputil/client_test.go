package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStandardClient(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.DefaultClient, NewStandardClient(nil))
	custom := &http.Client{}
	assert.Equal(t, custom, NewStandardClient(custom))
}

func TestPostJSON_Mock(t *testing.T) {
	t.Parallel()

	mock := NewMockHTTPClient().AddResponse(http.StatusOK, `{"format":"array"}`)
	data, err := PostJSON(mock, "http://glider.local/api/merge", map[string]string{"label": "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"format":"array"}`, string(data))

	require.Equal(t, 1, mock.RequestCount())
	assert.Equal(t, http.MethodPost, mock.Requests[0].Method)
	assert.Equal(t, "application/json", mock.Requests[0].Header.Get("Content-Type"))
	assert.JSONEq(t, `{"label":"x"}`, string(mock.Bodies[0]))
}

func TestPostJSON_Errors(t *testing.T) {
	t.Parallel()

	mock := NewMockHTTPClient().
		AddResponse(http.StatusBadRequest, `{"error":"invalid options"}`).
		AddResponse(http.StatusBadGateway, `upstream down`).
		AddErrorResponse(errors.New("connection refused"))

	_, err := PostJSON(mock, "http://glider.local/api/merge", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400: invalid options")

	_, err = PostJSON(mock, "http://glider.local/api/merge", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")

	_, err = PostJSON(mock, "http://glider.local/api/merge", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	// The queue is exhausted: default empty 200.
	data, err := GetJSON(mock, "http://glider.local/api/runs")
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.Nil(t, mock.Bodies[3])
}

func TestGetJSON_Server(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	data, err := GetJSON(NewStandardClient(srv.Client()), srv.URL+"/api/runs")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
