package rpc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runziggurat/zcash-sub001/internal/crawler"
)

func TestGetMetricsReturnsSummary(t *testing.T) {
	s := NewServer(func() crawler.NetworkSummary {
		return crawler.NetworkSummary{NumKnownNodes: 3, NumGoodNodes: 2}
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"getmetrics"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)

	resultBytes, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var summary crawler.NetworkSummary
	require.NoError(t, json.Unmarshal(resultBytes, &summary))
	assert.Equal(t, 3, summary.NumKnownNodes)
	assert.Equal(t, 2, summary.NumGoodNodes)
}

func TestUnknownMethodReturnsRPCError(t *testing.T) {
	s := NewServer(func() crawler.NetworkSummary { return crawler.NetworkSummary{} }, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"bogus"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}
