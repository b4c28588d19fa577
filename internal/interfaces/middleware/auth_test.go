package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/pkg/auth"
	"github.com/nexuscrm/salescrm/pkg/constants"
)

func newEngine(t *testing.T) (*gin.Engine, *auth.TokenManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tm, err := auth.NewTokenManager("middleware-secret-0123456789", time.Hour, "crm")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", RequireAuth(tm), func(c *gin.Context) {
		user := c.MustGet(constants.ContextKeyUser).(*models.UserSession)
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "role": user.Role})
	})
	r.GET("/admin", RequireAuth(tm), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, tm
}

func TestRequireAuth(t *testing.T) {
	r, tm := newEngine(t)
	token, _, err := tm.GenerateToken("u1", "u1@example.com", "User", "manager")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer " + token, "", http.StatusOK},
		{"lowercase scheme", "bearer " + token, "", http.StatusOK},
		{"query token", "", "?access_token=" + token, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + token, "", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(constants.HeaderAuthorization, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"id":"u1","role":"manager"}`, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"code":"UNAUTHORIZED"`)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	r, tm := newEngine(t)

	for role, status := range map[string]int{
		constants.RoleAdmin:    http.StatusNoContent,
		constants.RoleSalesRep: http.StatusForbidden,
		"root":                 http.StatusForbidden,
	} {
		token, _, err := tm.GenerateToken("u-"+role, role+"@example.com", "", role)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set(constants.HeaderAuthorization, constants.BearerPrefix+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, role)
	}
}
