package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/tianqi-tools/weather-mcp/internal/auth"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, auth.StaticKey("test-key"), 5*time.Second), srv
}

func TestClient_Get_Success(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("location")
		w.Write([]byte(`{"code":"200","now":{"temp":"20"}}`))
	})

	params := url.Values{}
	params.Set("location", "101010100")

	var out struct {
		Now struct {
			Temp string `json:"temp"`
		} `json:"now"`
	}
	if err := c.Get(context.Background(), "/v7/weather/now", params, &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-key")
	}
	if gotPath != "/v7/weather/now" {
		t.Errorf("path = %q, want /v7/weather/now", gotPath)
	}
	if gotQuery != "101010100" {
		t.Errorf("location query = %q, want 101010100", gotQuery)
	}
	if out.Now.Temp != "20" {
		t.Errorf("temp = %q, want 20", out.Now.Temp)
	}
}

// TestClient_Get_EnvelopeErrors verifies the per-code messages of the
// classic envelope.
func TestClient_Get_EnvelopeErrors(t *testing.T) {
	tests := []struct {
		code    string
		wantMsg string
	}{
		{code: "401", wantMsg: "Token 无效或已过期"},
		{code: "402", wantMsg: "API 调用次数已用完"},
		{code: "404", wantMsg: "请求的资源不存在"},
		{code: "500", wantMsg: "API 错误: 状态码 500"},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code":"` + tc.code + `"}`))
			})

			err := c.Get(context.Background(), "/v7/weather/now", nil, nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.Code != tc.code {
				t.Errorf("code = %q, want %q", apiErr.Code, tc.code)
			}
			if apiErr.Error() != tc.wantMsg {
				t.Errorf("message = %q, want %q", apiErr.Error(), tc.wantMsg)
			}
		})
	}
}

func TestClient_Get_HTTPStatusError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.Get(context.Background(), "/v7/weather/now", nil, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.Code != http.StatusBadGateway {
		t.Errorf("code = %d, want %d", statusErr.Code, http.StatusBadGateway)
	}
}

// TestClient_GetNoEnvelope verifies the alert/air-quality family decodes
// without any code check.
func TestClient_GetNoEnvelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"metadata":{"zeroResult":true}}`))
	})

	var out struct {
		Metadata struct {
			ZeroResult bool `json:"zeroResult"`
		} `json:"metadata"`
	}
	if err := c.GetNoEnvelope(context.Background(), "/weatheralert/v1/current/39.90/116.40", &out); err != nil {
		t.Fatalf("GetNoEnvelope() error = %v", err)
	}
	if !out.Metadata.ZeroResult {
		t.Error("zeroResult not decoded")
	}
}

func TestClient_Get_Timeout(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"code":"200"}`))
	})
	c.http.Timeout = 20 * time.Millisecond

	err := c.Get(context.Background(), "/v7/weather/now", nil, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
}

// TestClient_Get_Network covers connection failure against a closed port.
func TestClient_Get_Network(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c := New(srv.URL, auth.StaticKey("k"), time.Second)

	err := c.Get(context.Background(), "/v7/weather/now", nil, nil)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
}

type failingSource struct{}

func (failingSource) Token() (string, error) {
	return "", errors.New("no key material")
}

func TestClient_Get_CredentialError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent despite credential failure")
	})
	c.creds = failingSource{}

	err := c.Get(context.Background(), "/v7/weather/now", nil, nil)
	if err == nil {
		t.Fatal("Get() expected error, got nil")
	}
}
