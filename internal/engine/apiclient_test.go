package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClientLoginStoresTokenAndUser(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			require.Equal(t, http.MethodPost, r.Method)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "alice", body["username"])
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"token":   "jwt-token",
				"user":    map[string]interface{}{"id": 42},
			})
		case "/api/notifications":
			sawAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success":       true,
				"notifications": []Notification{notif("n1", PriorityNormal, 0)},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "")
	require.NoError(t, client.Login(context.Background(), "alice", "secret"))
	assert.Equal(t, uint(42), client.UserID())

	records, err := client.FetchBaseline(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "n1", records[0].ID)
	assert.Equal(t, "Bearer jwt-token", sawAuth)
}

func TestAPIClientLoginWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false})
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "")
	assert.Error(t, client.Login(context.Background(), "alice", "wrong"))
}

func TestAPIClientSurfacesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "Only critical notifications require acknowledgment",
		})
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "jwt")
	err := client.Acknowledge(context.Background(), "n1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Only critical notifications require acknowledgment")
	assert.Contains(t, err.Error(), "status 400")
}

func TestAPIClientWritebackPaths(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "jwt")
	ctx := context.Background()
	require.NoError(t, client.MarkRead(ctx, "n1"))
	require.NoError(t, client.MarkAllRead(ctx))
	require.NoError(t, client.Acknowledge(ctx, "c1"))
	require.NoError(t, client.SetLastSeenVersion(ctx, "1.2.0"))
	require.NoError(t, client.SetMuted(ctx, true))

	assert.Equal(t, []string{
		"PATCH /api/notifications/n1/read",
		"PATCH /api/notifications/read-all",
		"POST /api/notifications/c1/acknowledge",
		"PUT /api/preferences",
		"PUT /api/preferences",
	}, calls)
}

func TestAPIClientLatestReleaseNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "release": nil})
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "jwt")
	release, err := client.LatestRelease(context.Background())
	require.NoError(t, err)
	assert.Nil(t, release)
}
