// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosroyros/citations-sub002/services/validator/jobs"
	"github.com/rosroyros/citations-sub002/services/validator/quota"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// tierProbe runs ResolveTier and captures what it resolved.
func tierProbe(t *testing.T, headers map[string]string) (*httptest.ResponseRecorder, jobs.TierContext, bool) {
	t.Helper()

	router := gin.New()
	var captured jobs.TierContext
	var ok bool
	router.GET("/probe", ResolveTier(), func(c *gin.Context) {
		captured, ok = GetTierContext(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w, captured, ok
}

func TestResolveTier_PaidToken(t *testing.T) {
	w, tc, ok := tierProbe(t, map[string]string{
		HeaderUserToken: "paid-user-token",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, ok)
	assert.Equal(t, quota.TierPaid, tc.Tier)
	assert.Equal(t, "paid-user-token", tc.UserToken)
}

func TestResolveTier_FreeDefaults(t *testing.T) {
	w, tc, ok := tierProbe(t, nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, ok)
	assert.Equal(t, quota.TierFree, tc.Tier)
	assert.Equal(t, 0, tc.PriorUsed)
}

func TestResolveTier_FreeUsedHeader(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("7"))
	w, tc, ok := tierProbe(t, map[string]string{
		HeaderFreeUsed: encoded,
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, ok)
	assert.Equal(t, quota.TierFree, tc.Tier)
	assert.Equal(t, 7, tc.PriorUsed)
}

func TestResolveTier_UndecodableFreeUsedRejected(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "not base64", value: "!!!not-base64!!!"},
		{name: "base64 of non-integer", value: base64.StdEncoding.EncodeToString([]byte("seven"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _, _ := tierProbe(t, map[string]string{
				HeaderFreeUsed: tt.value,
			})
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestResolveTier_FreeUserID(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("anon-1234"))
	w, tc, ok := tierProbe(t, map[string]string{
		HeaderFreeUserID: encoded,
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, ok)
	assert.Equal(t, "anon-1234", tc.UserToken)
}

func TestResolveTier_PaidTokenIgnoresFreeHeaders(t *testing.T) {
	w, tc, ok := tierProbe(t, map[string]string{
		HeaderUserToken: "paid-token",
		HeaderFreeUsed:  "!!!garbage!!!",
	})

	// Free headers are irrelevant once a paid token is present.
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, ok)
	assert.Equal(t, quota.TierPaid, tc.Tier)
}

func TestRateLimiter_RejectsBurstOverflow(t *testing.T) {
	router := gin.New()
	limiter := NewRateLimiter(1, 2)
	router.GET("/probe", limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
}
