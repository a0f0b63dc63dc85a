package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/budget-ledger/internal/logging"
	"github.com/carson-networks/budget-ledger/internal/service"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

type fakeSync struct {
	status service.SyncStatus
	err    error
}

func (f fakeSync) Status(context.Context) (service.SyncStatus, error) {
	return f.status, f.err
}

func createTestLogData() *logging.LogData {
	logger := logging.SetupLogging()
	return logging.NewLogData(logger)
}

func TestHandler_GoodMethod(t *testing.T) {
	statusHandler := NewHandler(fakeSync{status: service.SyncStatus{Status: syncqueue.Status{PendingCount: 2}, Online: true}})
	req := httptest.NewRequest(http.MethodGet, "/status", nil)

	w := httptest.NewRecorder()

	err := statusHandler.Handler(w, req, createTestLogData())
	assert.NoError(t, err)

	res := w.Result()
	assert.Equal(t, 200, res.StatusCode)

	var body response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.True(t, body.Online)
	assert.Equal(t, 2, body.PendingCount)
}

func TestHandler_BadMethod(t *testing.T) {
	statusHandler := NewHandler(fakeSync{})
	req := httptest.NewRequest(http.MethodPost, "/status", nil)
	w := httptest.NewRecorder()

	err := statusHandler.Handler(w, req, createTestLogData())
	assert.Error(t, err)

	res := w.Result()
	assert.Equal(t, 400, res.StatusCode)
}

func TestHandler_QueueUnreadable(t *testing.T) {
	statusHandler := NewHandler(fakeSync{err: errors.New("database is locked")})
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()

	err := statusHandler.Handler(w, req, createTestLogData())
	assert.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, w.Result().StatusCode)
}
