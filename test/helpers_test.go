package test

import (
	"net/http"
	"testing"
)

func postRaw(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/vnd.apache.thrift.compact", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getRaw(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
