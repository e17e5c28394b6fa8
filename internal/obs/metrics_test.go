package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                        "/",
		"/metrics":                "/metrics",
		"/v1/auth/login":          "/v1/auth/login",
		"/v1/roles":               "/v1/roles",
		"/v1/roles/abc":           "/v1/roles/:id",
		"/v1/roles/abc?x=1":       "/v1/roles/:id",
		"/v1/users/u1/roles":      "/v1/users/:id/roles",
		"/v1/users/u1/roles/more": "/v1/users/u1/roles/more",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
