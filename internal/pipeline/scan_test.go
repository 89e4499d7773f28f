package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/eventlog"
)

func TestIsSupportedImage(t *testing.T) {
	tests := map[string]bool{
		"a.jpg":        true,
		"a.JPEG":       true,
		"b.Png":        true,
		"c.webp":       true,
		"d.gif":        false,
		"e.png.txt":    false,
		"png":          false,
		"archive.zip":  false,
		"scan.jpg.png": true,
	}
	for name, want := range tests {
		if got := IsSupportedImage(name); got != want {
			t.Errorf("IsSupportedImage(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestImageScannerScan(t *testing.T) {
	ws := t.TempDir()
	files := []string{
		"page10.png",
		"page2.PNG",
		"page1.jpg",
		"notes.txt",
		"sub/a.webp",
		"sub/deeper/b.jpeg",
		".hidden.png",
		"__MACOSX/._page1.jpg",
		"data.bin",
	}
	for _, f := range files {
		path := filepath.Join(ws, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(f), 0644); err != nil {
			t.Fatal(err)
		}
	}

	l := newEventLog(t)
	em := eventlog.NewEmitter(l, "job1")
	images, err := ImageScanner{}.Scan(context.Background(), em, ws)
	if err != nil {
		t.Fatal(err)
	}

	var rel []string
	for _, p := range images {
		r, _ := filepath.Rel(ws, p)
		rel = append(rel, filepath.ToSlash(r))
	}
	want := []string{"page1.jpg", "page2.PNG", "page10.png", "sub/a.webp", "sub/deeper/b.jpeg"}
	if !reflect.DeepEqual(rel, want) {
		t.Errorf("images = %v, want %v", rel, want)
	}

	records := readEvents(t, l, "job1")
	last := records[len(records)-1]
	if last.Message != "Scan complete. Found 5 supported images. Skipped 3 other files." {
		t.Errorf("summary = %q", last.Message)
	}
	if string(last.Data) != `{"image_count":5,"skipped_count":3}` {
		t.Errorf("summary data = %s", last.Data)
	}
	if n := countEvents(records, domain.EventImageScan); n != 7 {
		t.Errorf("IMAGE_SCAN events = %d, want 7", n)
	}
}

func TestNaturalLess(t *testing.T) {
	in := []string{"img10.png", "img2.png", "IMG1.png", "img02.png", "a/img3.png", "b.png", "img1.png"}
	sort.Slice(in, func(i, j int) bool { return naturalLess(in[i], in[j]) })
	want := []string{"a/img3.png", "b.png", "IMG1.png", "img1.png", "img2.png", "img02.png", "img10.png"}
	if !reflect.DeepEqual(in, want) {
		t.Errorf("sorted = %v, want %v", in, want)
	}
}
