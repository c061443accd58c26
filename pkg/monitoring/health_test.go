package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingableClient struct{ err error }

func (p *pingableClient) Ping(context.Context) error { return p.err }

func TestHealthChecker_Basic(t *testing.T) {
	hc := NewHealthChecker("glanker", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: StatusHealthy} })
	status := hc.CheckHealth()
	if status.Status != StatusHealthy {
		t.Fatalf("expected healthy")
	}
}

func TestHealthChecker_UnhealthyDominates(t *testing.T) {
	hc := NewHealthChecker("glanker", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: StatusHealthy} })
	hc.AddCheck("bad", func() CheckResult { return CheckResult{Status: StatusUnhealthy} })
	if hc.CheckHealth().Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy overall")
	}
}

func TestHTTPServiceHealthCheck(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) }))
	defer s.Close()
	res := HTTPServiceHealthCheck("svc", s.URL)()
	if res.Status != StatusHealthy {
		t.Fatalf("expected healthy")
	}
}

func TestRedisHealthCheck(t *testing.T) {
	if res := RedisHealthCheck(nil)(); res.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy for nil client, got %q", res.Status)
	}
	if res := RedisHealthCheck(&pingableClient{})(); res.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %q", res.Status)
	}
	if res := RedisHealthCheck(&pingableClient{err: errors.New("conn reset")})(); res.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy on ping error, got %q", res.Status)
	}
}

func TestConfigurationHealthCheck(t *testing.T) {
	res := ConfigurationHealthCheck(map[string]string{"WEBHOOK_SECRET": ""})()
	if res.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy for missing config")
	}
	res = ConfigurationHealthCheck(map[string]string{"WEBHOOK_SECRET": "set"})()
	if res.Status != StatusHealthy {
		t.Fatalf("expected healthy when config present")
	}
}
