package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/operator"
	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

func TestError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &ledger.ValidationError{Field: "amount", Reason: "must be greater than zero"}, http.StatusBadRequest},
		{"permission", fmt.Errorf("create: %w", storage.ErrPermissionDenied), http.StatusForbidden},
		{"not found", fmt.Errorf("account x: %w", storage.ErrNotFound), http.StatusNotFound},
		{"sync item", fmt.Errorf("discard x: %w", syncqueue.ErrItemNotFound), http.StatusNotFound},
		{"stopped", operator.ErrStopped, http.StatusServiceUnavailable},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var statusErr huma.StatusError
			require.True(t, errors.As(Error("failed", tt.err), &statusErr))
			assert.Equal(t, tt.status, statusErr.GetStatus())
		})
	}
}

func TestNewWriteResult(t *testing.T) {
	res := NewWriteResult(operator.Result{Status: operator.StatusQueued, EntityIDs: []string{"a"}, SyncItemID: "s"})

	assert.Equal(t, WriteResult{Status: "queued", EntityIDs: []string{"a"}, SyncItemID: "s"}, res)
}
