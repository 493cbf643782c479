package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetch(t *testing.T) {
	const doc = "--b\r\n\r\nbody\r\n--b--\r\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.Error(w, "no such document", http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Accept"); got != "multipart/*" {
			t.Errorf("got Accept %q", got)
		}
		w.Header().Set("Content-Type", `multipart/mixed; boundary="b"`)
		_, _ = io.WriteString(w, doc)
	}))
	defer srv.Close()

	ctx := context.Background()
	d, err := Fetch(ctx, srv.URL+"/doc", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Body.Close()
	if d.ContentType != `multipart/mixed; boundary="b"` {
		t.Errorf("got content type %q", d.ContentType)
	}
	data, err := io.ReadAll(d.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != doc {
		t.Errorf("got body %q", data)
	}

	_, err = Fetch(ctx, srv.URL+"/missing", time.Second)
	if err == nil || !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "no such document") {
		t.Fatalf("got %v", err)
	}
}
