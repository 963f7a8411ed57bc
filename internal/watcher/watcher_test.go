package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestCountAssets_EmptyDir(t *testing.T) {
	dir := t.TempDir()
	count := CountAssets(dir)
	if count != 0 {
		t.Errorf("expected 0 files, got %d", count)
	}
}

func TestCountAssets_WithFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"index.html", "screenshots.html", "app.js", "style.css"} {
		os.WriteFile(filepath.Join(dir, name), []byte("test"), 0644)
	}

	count := CountAssets(dir)
	if count != 4 {
		t.Errorf("expected 4 files, got %d", count)
	}
}

func TestCountAssets_ExcludesNodeModules(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("test"), 0644)

	nmDir := filepath.Join(dir, "node_modules")
	os.MkdirAll(nmDir, 0755)
	os.WriteFile(filepath.Join(nmDir, "package.json"), []byte("test"), 0644)

	count := CountAssets(dir)
	if count != 1 {
		t.Errorf("expected 1 file (node_modules excluded), got %d", count)
	}
}

func TestCountAssets_ExcludesHiddenAndScratch(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("test"), 0644)
	os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "index.html~"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, ".index.html.swp"), []byte("x"), 0644)

	gitDir := filepath.Join(dir, ".git")
	os.MkdirAll(gitDir, 0755)
	os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref"), 0644)

	count := CountAssets(dir)
	if count != 1 {
		t.Errorf("expected 1 file, got %d", count)
	}
}

func TestCountAssets_Nested(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "js", "vendor-free"), 0755)
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("test"), 0644)
	os.WriteFile(filepath.Join(dir, "js", "app.js"), []byte("test"), 0644)
	os.WriteFile(filepath.Join(dir, "js", "vendor-free", "lib.js"), []byte("test"), 0644)

	count := CountAssets(dir)
	if count != 3 {
		t.Errorf("expected 3 files, got %d", count)
	}
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{".git", true},
		{".env", true},
		{"index.html", false},
		{"", false},
	}

	for _, tt := range tests {
		got := isHidden(tt.name)
		if got != tt.want {
			t.Errorf("isHidden(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "/s/app.js", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/s/app.js", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/s/app.js", Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "/s/app.js", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/s/app.js", Op: fsnotify.Write | fsnotify.Chmod}, true},
		{fsnotify.Event{Name: "/s/app.js~", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/s/.app.js.swp", Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		if got := relevant(tt.event); got != tt.want {
			t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
		}
	}
}

func TestWatch_NotADirectory(t *testing.T) {
	w := New(nil)
	if err := w.Watch(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing dir")
	}

	f := filepath.Join(t.TempDir(), "file.txt")
	os.WriteFile(f, []byte("x"), 0644)
	if err := w.Watch(f); err == nil {
		t.Fatal("expected error for file path")
	}
}

func TestWatch_NotifiesOnChange(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("v1"), 0644)

	changes := make(chan int, 10)
	w := New(func(_ string, assets int) { changes <- assets }, WithDebounce(20*time.Millisecond))
	defer w.Shutdown()

	if err := w.Watch(dir); err != nil {
		t.Fatalf("watch: %v", err)
	}
	// Watching twice is a no-op.
	if err := w.Watch(dir); err != nil {
		t.Fatalf("second watch: %v", err)
	}

	os.WriteFile(filepath.Join(dir, "index.html"), []byte("v2"), 0644)
	os.WriteFile(filepath.Join(dir, "app.js"), []byte("js"), 0644)

	deadline := time.After(3 * time.Second)
	for {
		select {
		case n := <-changes:
			if n == 2 {
				return
			}
		case <-deadline:
			t.Fatal("no change notification with 2 assets")
		}
	}
}

func TestWatch_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()

	changes := make(chan int, 10)
	w := New(func(_ string, assets int) { changes <- assets }, WithDebounce(20*time.Millisecond))
	defer w.Shutdown()

	if err := w.Watch(dir); err != nil {
		t.Fatalf("watch: %v", err)
	}

	sub := filepath.Join(dir, "css")
	os.MkdirAll(sub, 0755)
	waitForChange(t, changes)

	os.WriteFile(filepath.Join(sub, "style.css"), []byte("body{}"), 0644)
	deadline := time.After(3 * time.Second)
	for {
		select {
		case n := <-changes:
			if n == 1 {
				return
			}
		case <-deadline:
			t.Fatal("change in new subdirectory not seen")
		}
	}
}

func TestUnwatch_StopsNotifications(t *testing.T) {
	dir := t.TempDir()

	changes := make(chan int, 10)
	w := New(func(_ string, assets int) { changes <- assets }, WithDebounce(20*time.Millisecond))
	if err := w.Watch(dir); err != nil {
		t.Fatalf("watch: %v", err)
	}
	w.Unwatch(dir)

	os.WriteFile(filepath.Join(dir, "index.html"), []byte("v1"), 0644)
	select {
	case <-changes:
		t.Fatal("unexpected notification after Unwatch")
	case <-time.After(200 * time.Millisecond):
	}
}

func waitForChange(t *testing.T, changes <-chan int) {
	t.Helper()
	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}
}
