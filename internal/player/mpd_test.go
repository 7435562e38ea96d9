package player

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/fhs/gompd/v2/mpd"
)

// fakeMPD records calls made on one connection.
type fakeMPD struct {
	song   mpd.Attrs
	status mpd.Attrs
	err    error
	calls  []string
	closed bool
}

func (f *fakeMPD) Status() (mpd.Attrs, error)      { return f.status, f.err }
func (f *fakeMPD) CurrentSong() (mpd.Attrs, error) { return f.song, f.err }
func (f *fakeMPD) Ping() error                     { return f.err }
func (f *fakeMPD) Close() error                    { f.closed = true; return nil }

func (f *fakeMPD) Play(pos int) error {
	f.calls = append(f.calls, "play")
	return f.err
}

func (f *fakeMPD) Pause(pause bool) error {
	if pause {
		f.calls = append(f.calls, "pause")
	} else {
		f.calls = append(f.calls, "resume")
	}
	return f.err
}

func (f *fakeMPD) Next() error     { f.calls = append(f.calls, "next"); return f.err }
func (f *fakeMPD) Previous() error { f.calls = append(f.calls, "previous"); return f.err }

func testMPDBus(c *fakeMPD, dialErr error) *MPDBus {
	return &MPDBus{network: "tcp", addr: "localhost:6600", dial: func(network, addr, password string) (mpdClient, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return c, nil
	}}
}

func TestMPDServices(t *testing.T) {
	got, err := testMPDBus(&fakeMPD{}, nil).Services(context.Background())
	if err != nil {
		t.Fatalf("Services: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"org.mpris.MediaPlayer2.mpd"}) {
		t.Errorf("Services() = %v", got)
	}

	down := testMPDBus(nil, errors.New("connection refused"))
	if got, err := down.Services(context.Background()); err != nil || len(got) != 0 {
		t.Errorf("unreachable server should list nothing, got %v, %v", got, err)
	}
}

func TestMPDMetadata(t *testing.T) {
	tests := []struct {
		name    string
		song    mpd.Attrs
		status  mpd.Attrs
		mpdErr  error
		dialErr error
		want    Metadata
		wantErr bool
		noInfo  bool
	}{
		{
			name:   "tagged track",
			song:   mpd.Attrs{"Title": "Song A", "Artist": "Artist X", "Album": "Album Y", "file": "x/a.flac"},
			status: mpd.Attrs{"state": "play"},
			want:   Metadata{Title: "Song A", Artist: []string{"Artist X"}, Album: "Album Y", Status: "Playing"},
		},
		{
			name:   "stream name",
			song:   mpd.Attrs{"Name": "Radio One", "file": "http://radio/stream"},
			status: mpd.Attrs{"state": "pause"},
			want:   Metadata{Title: "Radio One", Status: "Paused"},
		},
		{
			name:   "untagged file",
			song:   mpd.Attrs{"file": "music/untagged.mp3"},
			status: mpd.Attrs{"state": "stop"},
			want:   Metadata{Title: "untagged.mp3", Status: "Stopped"},
		},
		{
			name:    "nothing queued",
			song:    mpd.Attrs{},
			status:  mpd.Attrs{"state": "stop"},
			wantErr: true,
			noInfo:  true,
		},
		{
			name:    "server down",
			dialErr: errors.New("connection refused"),
			wantErr: true,
		},
		{
			name:    "command rejected",
			mpdErr:  errors.New("ACK [4@0] {currentsong} you don't have permission"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeMPD{song: tt.song, status: tt.status, err: tt.mpdErr}
			got, err := testMPDBus(c, tt.dialErr).Metadata(context.Background(), MPDService)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				if errors.Is(err, ErrNoMetadata) != tt.noInfo {
					t.Errorf("Metadata error = %v; ErrNoMetadata = %v, want %v", err, errors.Is(err, ErrNoMetadata), tt.noInfo)
				}
				return
			}
			if err != nil {
				t.Fatalf("Metadata: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Metadata() = %+v; want %+v", got, tt.want)
			}
			if !c.closed {
				t.Error("connection not closed after use")
			}
		})
	}
}

func TestMPDMetadataOtherService(t *testing.T) {
	c := &fakeMPD{song: mpd.Attrs{"Title": "Song A"}}
	if _, err := testMPDBus(c, nil).Metadata(context.Background(), "org.mpris.MediaPlayer2.vlc"); !errors.Is(err, ErrNoMetadata) {
		t.Errorf("error = %v; want ErrNoMetadata", err)
	}
}

func TestMPDControl(t *testing.T) {
	tests := []struct {
		cmd   Command
		state string
		want  string
	}{
		{Play, "stop", "play"},
		{Play, "pause", "resume"},
		{Pause, "play", "pause"},
		{Next, "play", "next"},
		{Previous, "play", "previous"},
	}

	for _, tt := range tests {
		t.Run(string(tt.cmd)+"/"+tt.state, func(t *testing.T) {
			c := &fakeMPD{status: mpd.Attrs{"state": tt.state}}
			if err := testMPDBus(c, nil).Control(context.Background(), MPDService, tt.cmd); err != nil {
				t.Fatalf("Control: %v", err)
			}
			if !reflect.DeepEqual(c.calls, []string{tt.want}) {
				t.Errorf("calls = %v; want [%s]", c.calls, tt.want)
			}
		})
	}
}

func TestMPDControlErrors(t *testing.T) {
	if err := testMPDBus(&fakeMPD{}, nil).Control(context.Background(), "org.mpris.MediaPlayer2.vlc", Play); err == nil {
		t.Error("expected error for foreign service")
	}
	if err := testMPDBus(nil, errors.New("refused")).Control(context.Background(), MPDService, Next); err == nil {
		t.Error("expected error when server is down")
	}
}

func TestMPDRespectsContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	b := &MPDBus{addr: "slow:6600", dial: func(network, addr, password string) (mpdClient, error) {
		<-block
		return nil, errors.New("too late")
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Control(ctx, MPDService, Next)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v; want deadline exceeded", err)
	}
}
