package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"mesa-order-client/internal/auth"
)

type contextKey string

const staffContextKey contextKey = "staffContext"

type StaffContext struct {
	StaffID      string
	Role         auth.StaffRole
	RestaurantID string
}

func WithStaffContext(ctx context.Context, staff *StaffContext) context.Context {
	return context.WithValue(ctx, staffContextKey, staff)
}

func GetStaffContext(ctx context.Context) (*StaffContext, bool) {
	value := ctx.Value(staffContextKey)
	if value == nil {
		return nil, false
	}
	sc, ok := value.(*StaffContext)
	return sc, ok
}

// CanManage reports whether the staff member may act on restaurantID.
// Managers without a restaurant claim act on every restaurant.
func (sc *StaffContext) CanManage(restaurantID string) bool {
	if sc == nil {
		return false
	}
	if sc.RestaurantID == "" {
		return sc.Role == auth.RoleManager
	}
	return sc.RestaurantID == restaurantID
}

func writeAuthError(w http.ResponseWriter, status int, message string, debug string, env string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload := map[string]any{
		"success": false,
		"error":   "UNAUTHORIZED",
		"message": message,
	}
	if env == "development" && strings.TrimSpace(debug) != "" {
		payload["debug"] = debug
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// StaffAuth requires a valid HS256 bearer token signed with jwtSecret.
func StaffAuth(jwtSecret string, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Authorization token required", err.Error(), env)
				return
			}
			if claims.Role != auth.RoleManager && claims.Role != auth.RoleWaiter {
				writeAuthError(w, http.StatusForbidden, "Staff access required", "", env)
				return
			}

			staff := &StaffContext{
				StaffID:      claims.StaffID,
				Role:         claims.Role,
				RestaurantID: claims.RestaurantID,
			}
			next.ServeHTTP(w, r.WithContext(WithStaffContext(r.Context(), staff)))
		})
	}
}
