package client

import (
	"strings"
	"testing"
)

func TestNewBaseURL(t *testing.T) {
	t.Setenv("RAGSERVE_SERVER_URL", "")

	c := New("")
	if !strings.HasSuffix(c.baseURL, ":8000") {
		t.Errorf("default baseURL = %q, want the server's default port", c.baseURL)
	}

	c = New("http://rag.internal:9999")
	if c.baseURL != "http://rag.internal:9999" {
		t.Errorf("explicit baseURL = %q", c.baseURL)
	}

	t.Setenv("RAGSERVE_SERVER_URL", "http://env.internal:7777")
	c = New("")
	if c.baseURL != "http://env.internal:7777" {
		t.Errorf("env baseURL = %q", c.baseURL)
	}
}
