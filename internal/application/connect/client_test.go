package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"easyflip-backend/internal/domain"
)

func TestClient_StartAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/ebay/oauth/start":
			assert.Equal(t, http.MethodPost, r.Method)
			_, _ = w.Write([]byte(`{"status":"success","message":"ok","data":{"auth_url":"https://auth.example","state":"abc"}}`))
		case "/api/v1/ebay/oauth/status":
			assert.Equal(t, "abc", r.URL.Query().Get("state"))
			_, _ = w.Write([]byte(`{"status":"success","message":"ok","data":{"state":"abc","status":"connected"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok")
	start, err := c.StartAuth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", start.State)

	st, err := c.Status(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectStatusConnected, st.Status)
}

func TestClient_AuthConfigOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error","error":{"message":"not configured","statusCode":503,"details":{"class":"auth_config_error"}}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok").StartAuth(context.Background())
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, domain.ErrorAuthConfig, fe.Class)
}

func TestClient_TransportErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "tok").Status(context.Background(), "abc")
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, domain.ErrorNetwork, fe.Class)
}

func TestClient_MissingStateIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"auth_url":"https://auth.example"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").StartAuth(context.Background())
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, domain.ErrorUnknown, fe.Class)
}

func TestFlow_EndToEndOverHTTP(t *testing.T) {
	checks := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/ebay/oauth/start" {
			_, _ = w.Write([]byte(`{"status":"success","data":{"auth_url":"https://auth.example","state":"xyz"}}`))
			return
		}
		checks++
		status := "pending"
		if checks >= 3 {
			status = "connected"
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"state":"xyz","status":"` + status + `"}}`))
	}))
	defer srv.Close()

	var opened string
	f := &Flow{
		API:    NewClient(srv.URL, "tok"),
		Opener: OpenerFunc(func(u string) error { opened = u; return nil }),
	}
	require.NoError(t, f.Start(context.Background()))
	assert.Equal(t, "https://auth.example", opened)
	assert.Equal(t, StateConnected, f.State())
}
