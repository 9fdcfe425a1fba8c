package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	tn, err := Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if tn != Defaults() {
		t.Fatalf("got %+v, want Defaults()", tn)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	want := Tuning{
		PacketQueueMaxBytes: 10 * 1024 * 1024,
		AudioFrameQueueSize: 5,
		VideoFrameQueueSize: 2,
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.PacketQueueMaxBytes != want.PacketQueueMaxBytes {
		t.Fatalf("PacketQueueMaxBytes = %d, want %d", got.PacketQueueMaxBytes, want.PacketQueueMaxBytes)
	}
	if got.AudioFrameQueueSize != want.AudioFrameQueueSize {
		t.Fatalf("AudioFrameQueueSize = %d, want %d", got.AudioFrameQueueSize, want.AudioFrameQueueSize)
	}
}

func TestLoadFillsZeroFieldsFromDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yml")
	// Only override one field; every other field should fall back to
	// Defaults() once loaded, per merge's zero-value-fill rule.
	if err := Save(path, Tuning{AudioFrameQueueSize: 7}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := Defaults()
	if got.AudioFrameQueueSize != 7 {
		t.Fatalf("AudioFrameQueueSize = %d, want 7 (overridden)", got.AudioFrameQueueSize)
	}
	if got.VideoFrameQueueSize != d.VideoFrameQueueSize {
		t.Fatalf("VideoFrameQueueSize = %d, want default %d", got.VideoFrameQueueSize, d.VideoFrameQueueSize)
	}
	if got.PacketQueueMaxBytes != d.PacketQueueMaxBytes {
		t.Fatalf("PacketQueueMaxBytes = %d, want default %d", got.PacketQueueMaxBytes, d.PacketQueueMaxBytes)
	}
}
