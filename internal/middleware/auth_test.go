package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mesa-order-client/internal/auth"
)

func TestStaffAuth(t *testing.T) {
	const secret = "staff-secret"
	var seen *StaffContext
	h := StaffAuth(secret, "test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetStaffContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	waiter, _ := auth.IssueAccessToken(secret, auth.Claims{StaffID: "7", Role: auth.RoleWaiter, RestaurantID: "1"}, time.Minute)
	forged, _ := auth.IssueAccessToken("other", auth.Claims{StaffID: "7", Role: auth.RoleWaiter}, time.Minute)
	diner, _ := auth.IssueAccessToken(secret, auth.Claims{StaffID: "8", Role: "DINER"}, time.Minute)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"malformed header", "Token " + waiter, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized},
		{"unknown role", "Bearer " + diner, http.StatusForbidden},
		{"waiter", "Bearer " + waiter, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodPost, "/api/staff/mesas", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rec.Code, rec.Body.String())
			}
			if tc.status == http.StatusNoContent && (seen == nil || seen.StaffID != "7") {
				t.Fatalf("expected staff context, got %+v", seen)
			}
		})
	}
}

func TestStaffAuthWithoutSecretRejects(t *testing.T) {
	h := StaffAuth("", "test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run without a configured secret")
	}))
	token, _ := auth.IssueAccessToken("x", auth.Claims{StaffID: "1", Role: auth.RoleManager}, time.Minute)
	req := httptest.NewRequest(http.MethodDelete, "/api/staff/mesas/1234", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestStaffContextCanManage(t *testing.T) {
	cases := []struct {
		staff *StaffContext
		want  bool
	}{
		{nil, false},
		{&StaffContext{Role: auth.RoleWaiter, RestaurantID: "1"}, true},
		{&StaffContext{Role: auth.RoleWaiter, RestaurantID: "2"}, false},
		{&StaffContext{Role: auth.RoleWaiter}, false},
		{&StaffContext{Role: auth.RoleManager}, true},
	}
	for i, tc := range cases {
		if got := tc.staff.CanManage("1"); got != tc.want {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, got)
		}
	}
}
