package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := map[string]string{
		"https://abc.r2.cloudflarestorage.com/": "abc.r2.cloudflarestorage.com",
		"http://localhost:9000/some/path":       "localhost:9000",
		"s3.amazonaws.com":                      "s3.amazonaws.com",
	}
	for in, want := range tests {
		if got := normalizeEndpoint(in); got != want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetectStorageType(t *testing.T) {
	tests := map[string]StorageType{
		"https://abc.r2.cloudflarestorage.com": StorageTypeR2,
		"s3.eu-west-1.amazonaws.com":           StorageTypeS3,
		"localhost:9000":                       StorageTypeS3Compatible,
	}
	for in, want := range tests {
		if got := detectStorageType(in); got != want {
			t.Errorf("detectStorageType(%q) = %q, want %q", in, got, want)
		}
	}
}

type recordedPut struct {
	path        string
	contentType string
	body        string
}

func TestS3StorageUploadAndURL(t *testing.T) {
	var (
		mu   sync.Mutex
		puts []recordedPut
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Method == http.MethodPut {
			mu.Lock()
			puts = append(puts, recordedPut{path: r.URL.Path, contentType: r.Header.Get("Content-Type"), body: string(body)})
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st, err := NewS3Storage(context.Background(), &S3Config{
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    "results",
	})
	if err != nil {
		t.Fatal(err)
	}

	archive := NewResultArchive(st, "/jobs/")
	url, err := archive.SaveResult(context.Background(), "job-1", "Source Image: a.png\nhello")
	if err != nil {
		t.Fatal(err)
	}

	wantURL := srv.URL + "/results/jobs/job-1.txt"
	if url != wantURL {
		t.Errorf("url = %q, want %q", url, wantURL)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(puts) != 1 {
		t.Fatalf("PUT requests = %d", len(puts))
	}
	if puts[0].path != "/results/jobs/job-1.txt" {
		t.Errorf("path = %s", puts[0].path)
	}
	if puts[0].contentType != resultContentType {
		t.Errorf("content type = %q", puts[0].contentType)
	}
	if !strings.Contains(puts[0].body, "hello") {
		t.Errorf("body = %q", puts[0].body)
	}
}

type failingStore struct{}

func (failingStore) EnsureBucket(context.Context) error { return nil }
func (failingStore) Upload(context.Context, string, io.Reader, int64, string) error {
	return errors.New("access denied")
}
func (failingStore) GetURL(key string) string { return "unused/" + key }

func TestResultArchivePropagatesUploadErrors(t *testing.T) {
	a := NewResultArchive(failingStore{}, "")
	if a.Key("j") != "j.txt" {
		t.Errorf("Key = %q", a.Key("j"))
	}
	if _, err := a.SaveResult(context.Background(), "j", "text"); err == nil {
		t.Fatal("expected an error")
	}
}
