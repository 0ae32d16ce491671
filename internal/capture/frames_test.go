package capture

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func TestParseFrameNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"frame_000001.jpg", 1, true},
		{"frame_123456.jpg", 123456, true},
		{"frame_1234567.jpg", 1234567, true},
		{"frame_000000.jpg", 0, false},
		{"frame_01.jpg", 0, false},
		{"frame_00000a.jpg", 0, false},
		{"frame_000001.png", 0, false},
		{"clip_000001.jpg", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseFrameNumber(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseFrameNumber(%q) = %d,%v want %d,%v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
	if FrameName(42) != "frame_000042.jpg" {
		t.Fatalf("unexpected frame name %q", FrameName(42))
	}
}

func TestBuildArgsStream(t *testing.T) {
	args := BuildArgs(Spec{
		Source:        "rtsp://cam/stream",
		Dir:           "/frames",
		StartNumber:   4,
		Interval:      10 * time.Second,
		Quality:       2,
		RTSPTransport: "tcp",
	})
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-rtsp_transport tcp -i rtsp://cam/stream",
		"-vf fps=1/10",
		"-q:v 2",
		"-start_number 4",
		"/frames/frame_%06d.jpg",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
	if slices.Contains(args, "image2") {
		t.Fatalf("stream source should not use image2 demuxer: %q", joined)
	}
}

func TestBuildArgsSnapshotURL(t *testing.T) {
	args := BuildArgs(Spec{Source: "http://cam.local/snapshot.jpg?t=1", Dir: "/frames", Interval: 1500 * time.Millisecond})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-f image2 -loop 1 -re -i http://cam.local/snapshot.jpg?t=1") {
		t.Fatalf("expected image2 loop input, got %q", joined)
	}
	if !strings.Contains(joined, "fps=1/1.5") {
		t.Fatalf("expected fractional interval, got %q", joined)
	}
	if !strings.Contains(joined, "-start_number 1") {
		t.Fatalf("expected default start number, got %q", joined)
	}
	if strings.Contains(joined, "rtsp_transport") {
		t.Fatalf("http source should not set rtsp transport: %q", joined)
	}
}

func TestRingBufferKeepsNewest(t *testing.T) {
	r := newRingBuffer(3)
	for _, line := range []string{"a", "b"} {
		r.add(line)
	}
	if got := r.lines(); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("unexpected partial lines %v", got)
	}
	for _, line := range []string{"c", "d", "e"} {
		r.add(line)
	}
	if got := r.lines(); !slices.Equal(got, []string{"c", "d", "e"}) {
		t.Fatalf("unexpected wrapped lines %v", got)
	}
}
