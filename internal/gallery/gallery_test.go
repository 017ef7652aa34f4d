package gallery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"storyvox/internal/gateway"
	"storyvox/internal/services"
)

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.webp") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("RIFF" + r.URL.Path))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAggregateWritesArchive(t *testing.T) {
	server := imageServer(t)
	out := t.TempDir()
	c := NewCollector(gateway.New(), Options{OutputRoot: out})

	images := []Image{
		{URL: server.URL + "/one.webp", Prompt: "a red fox <at dawn>"},
		{URL: server.URL + "/missing.webp", Prompt: "lost"},
		{URL: server.URL + "/three.webp", Prompt: "a quiet river"},
	}
	summary, err := c.Aggregate(context.Background(), images, "forest tales")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if summary.TotalImages != 3 || summary.Saved != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if filepath.Dir(summary.Directory) != out || filepath.Base(summary.Directory) != summary.RunID {
		t.Fatalf("archive should live at <output>/<run>, got %s", summary.Directory)
	}

	for _, name := range []string{"image-001.webp", "image-003.webp"} {
		if _, err := os.Stat(filepath.Join(summary.Directory, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(summary.Directory, "image-002.webp")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("failed image must not be written")
	}

	prompts, _ := os.ReadFile(filepath.Join(summary.Directory, "prompts.txt"))
	wantPrompts := "Image 1:\na red fox <at dawn>\nURL: " + images[0].URL + "\n\n" +
		"Image 3:\na quiet river\nURL: " + images[2].URL + "\n\n"
	if string(prompts) != wantPrompts {
		t.Fatalf("prompts.txt = %q", prompts)
	}
	errorsLog, _ := os.ReadFile(filepath.Join(summary.Directory, "errors.txt"))
	if !strings.HasPrefix(string(errorsLog), "Failed to download image 2:\nURL: "+images[1].URL+"\nError: ") {
		t.Fatalf("errors.txt = %q", errorsLog)
	}
}

func TestGalleryPageListsImagesInOrder(t *testing.T) {
	server := imageServer(t)
	c := NewCollector(gateway.New(), Options{OutputRoot: t.TempDir()})

	images := []Image{
		{URL: server.URL + "/a.webp", Prompt: "first <script>alert(1)</script>"},
		{URL: server.URL + "/b.webp", Prompt: "second"},
	}
	summary, err := c.Aggregate(context.Background(), images, "dragon's keep")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	f, err := os.Open(filepath.Join(summary.Directory, "gallery.html"))
	if err != nil {
		t.Fatalf("open gallery: %v", err)
	}
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		t.Fatalf("parse gallery: %v", err)
	}

	if got := doc.Find("title").Text(); got != "Dragon's Keep - Image Gallery" {
		t.Fatalf("title = %q", got)
	}
	figures := doc.Find("figure.image-container")
	if figures.Length() != 2 {
		t.Fatalf("expected 2 figures, got %d", figures.Length())
	}
	figures.Each(func(i int, s *goquery.Selection) {
		src, _ := s.Find("img").Attr("src")
		if src != ImageName(i) {
			t.Errorf("figure %d src = %q", i, src)
		}
		if !strings.Contains(s.Find("figcaption").Text(), images[i].Prompt) {
			t.Errorf("figure %d caption missing prompt: %q", i, s.Find("figcaption").Text())
		}
	})
	if doc.Find("script").Length() != 0 {
		t.Fatal("prompt text must be escaped, not rendered as markup")
	}
}

func TestGalleryDefaultsThemeName(t *testing.T) {
	server := imageServer(t)
	c := NewCollector(gateway.New(), Options{OutputRoot: t.TempDir()})

	summary, err := c.Aggregate(context.Background(), []Image{{URL: server.URL + "/a.webp", Prompt: "p"}}, "  ")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	f, _ := os.Open(filepath.Join(summary.Directory, "gallery.html"))
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Find("title").Text(); got != "Story - Image Gallery" {
		t.Fatalf("title = %q", got)
	}
}

func TestAggregateRejectsEmptyBatch(t *testing.T) {
	c := NewCollector(gateway.New(), Options{OutputRoot: t.TempDir()})
	if _, err := c.Aggregate(context.Background(), nil, "x"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAggregateRecordsInvalidURLAsFailure(t *testing.T) {
	c := NewCollector(gateway.New(), Options{OutputRoot: t.TempDir()})
	summary, err := c.Aggregate(context.Background(), []Image{{URL: "not-a-url", Prompt: "p"}}, "x")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if summary.Failed != 1 || summary.Saved != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(summary.Directory, "prompts.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("prompts.txt should not exist when nothing was saved")
	}
}
