package prefs

import (
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
)

func TestLoadMissingRecord(t *testing.T) {
	s := NewStore(afero.NewMemMapFs(), "/cfg/player_pref.json")

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load on missing record should not fail: %v", err)
	}
	if got != "" {
		t.Errorf("Load() = %q; want empty", got)
	}
}

func TestSaveThenLoad(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := NewStore(fsys, "/cfg/mprisremote/player_pref.json")

	if err := s.Save("org.mpris.MediaPlayer2.mpv"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "org.mpris.MediaPlayer2.mpv" {
		t.Errorf("Load() = %q", got)
	}

	// Save overwrites unconditionally
	if err := s.Save("org.mpris.MediaPlayer2.spotify"); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if got, _ := s.Load(); got != "org.mpris.MediaPlayer2.spotify" {
		t.Errorf("after overwrite Load() = %q", got)
	}

	// No temp files left behind
	entries, err := afero.ReadDir(fsys, "/cfg/mprisremote")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the record in dir, got %d entries", len(entries))
	}
}

func TestRecordIsJSONString(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := NewStore(fsys, "/player_pref.json")
	if err := s.Save("org.mpris.MediaPlayer2.vlc"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := afero.ReadFile(fsys, "/player_pref.json")
	if string(data) != `"org.mpris.MediaPlayer2.vlc"` {
		t.Errorf("record = %s", data)
	}
}

func TestLoadCorruptRecord(t *testing.T) {
	fsys := afero.NewMemMapFs()
	afero.WriteFile(fsys, "/player_pref.json", []byte("{not json"), 0o644)

	_, err := NewStore(fsys, "/player_pref.json").Load()
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "parse preference") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSaveReadOnlyFs(t *testing.T) {
	s := NewStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/cfg/player_pref.json")
	if err := s.Save("org.mpris.MediaPlayer2.mpv"); err == nil {
		t.Error("expected error on read-only filesystem")
	}
}

func TestConcurrentLoads(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := NewStore(fsys, "/player_pref.json")
	if err := s.Save("org.mpris.MediaPlayer2.mpv"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, err := s.Load(); err != nil || got != "org.mpris.MediaPlayer2.mpv" {
				t.Errorf("Load() = %q, %v", got, err)
			}
		}()
	}
	wg.Wait()
}
