package security

import (
	"net/http/httptest"
	"testing"
)

func TestResolver_ClientIP(t *testing.T) {
	rs := NewResolver()

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.7:52100",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded header from trusted proxy",
			remoteAddr: "127.0.0.1:4000",
			xff:        "203.0.113.7, 10.0.0.1",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded header from untrusted peer is ignored",
			remoteAddr: "203.0.113.9:4000",
			xff:        "198.51.100.1",
			want:       "203.0.113.9",
		},
		{
			name:       "x-real-ip from trusted proxy",
			remoteAddr: "192.168.1.10:4000",
			xri:        "203.0.113.7",
			want:       "203.0.113.7",
		},
		{
			name:       "invalid forwarded value falls back to direct",
			remoteAddr: "10.0.0.2:4000",
			xff:        "not-an-ip",
			want:       "10.0.0.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			if got := rs.ClientIP(req); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
