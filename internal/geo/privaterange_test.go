package geo

import "testing"

func TestIsPrivate(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"10.0.0.1", true},
		{"192.168.1.1", true},
		{"172.16.5.4", true},
		{"127.0.0.1", true},
		{"169.254.1.1", true},
		{"::1", true},
		{"fe80::1", true},
		{"8.8.8.8", false},
		{"203.0.113.5", false},
		{"2001:4860:4860::8888", false},
		{"not-an-ip", false},
		{"", false},
	}
	for _, c := range cases {
		if got := isPrivate(c.addr); got != c.want {
			t.Errorf("isPrivate(%q)=%v want %v", c.addr, got, c.want)
		}
	}
}
