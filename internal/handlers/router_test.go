package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouter_Routes(t *testing.T) {
	handler := &Handler{}
	router := NewRouter(handler, "testsecret")

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"GET", "/api/provider/wallet", http.StatusUnauthorized},
		{"GET", "/api/provider/wallet/transactions", http.StatusUnauthorized},
		{"POST", "/api/provider/withdrawals", http.StatusUnauthorized},
		{"POST", "/api/payments/42/process", http.StatusUnauthorized},
		{"POST", "/api/admin/withdrawals/3/approve", http.StatusUnauthorized},
		{"GET", "/notfound", http.StatusNotFound},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		resp := w.Result()
		if resp.StatusCode != tt.status {
			t.Errorf("%s %s: got %d, want %d", tt.method, tt.path, resp.StatusCode, tt.status)
		}
	}
}
