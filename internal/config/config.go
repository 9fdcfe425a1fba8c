// Package config loads the engine's tuning knobs from a YAML file, the
// same way the teacher's config.go loads AppConfig: read, yaml.Unmarshal,
// fall back to defaults if absent; save via a temp-file-then-rename.
package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Tuning holds the numeric constants spec.md hardcodes as fixed values
// (§4.1, §4.2, §4.6, §4.7), exposed here so a host can tighten or loosen
// them without recompiling. Zero-value fields are replaced by Defaults()
// at load time.
type Tuning struct {
	// PacketQueueMaxBytes is the aggregate byte budget across the audio
	// and video packet queues before the reader backpressures (spec.md
	// §4.1/§4.6: 50 MiB).
	PacketQueueMaxBytes int64 `yaml:"packet_queue_max_bytes,omitempty"`
	// PacketQueueMaxCount is the per-queue packet count cap (spec.md:
	// 500).
	PacketQueueMaxCount int `yaml:"packet_queue_max_count,omitempty"`

	// AudioFrameQueueSize is sampq's capacity (spec.md §4.2: 9).
	AudioFrameQueueSize int `yaml:"audio_frame_queue_size,omitempty"`
	// VideoFrameQueueSize is pictq's capacity (spec.md §4.2: 3).
	VideoFrameQueueSize int `yaml:"video_frame_queue_size,omitempty"`

	// RefreshRateMillis is the base period of the presentation
	// scheduler's sleep (spec.md §4.7: 10ms).
	RefreshRateMillis int `yaml:"refresh_rate_millis,omitempty"`
	// ReadBackpressureWaitMillis is how long the reader waits on
	// read_thread_cond when backpressured (spec.md §4.6: 10ms).
	ReadBackpressureWaitMillis int `yaml:"read_backpressure_wait_millis,omitempty"`

	// MaxFrameDurationNormal/Discontinuous name the two max_frame_duration
	// values of spec.md §4.6 step 3. Only the normal value is used: it
	// seeds the presentation scheduler. The reader does not read either
	// field; it picks between its own fixed 10s and 3600s values.
	MaxFrameDurationNormalSeconds        float64 `yaml:"max_frame_duration_normal_seconds,omitempty"`
	MaxFrameDurationDiscontinuousSeconds float64 `yaml:"max_frame_duration_discontinuous_seconds,omitempty"`
}

// Defaults returns the spec.md-mandated constant values.
func Defaults() Tuning {
	return Tuning{
		PacketQueueMaxBytes:                  50 * 1024 * 1024,
		PacketQueueMaxCount:                  500,
		AudioFrameQueueSize:                  9,
		VideoFrameQueueSize:                  3,
		RefreshRateMillis:                    10,
		ReadBackpressureWaitMillis:           10,
		MaxFrameDurationNormalSeconds:         3600.0,
		MaxFrameDurationDiscontinuousSeconds: 10.0,
	}
}

// merge fills zero-valued fields of t with d's values.
func merge(t, d Tuning) Tuning {
	if t.PacketQueueMaxBytes == 0 {
		t.PacketQueueMaxBytes = d.PacketQueueMaxBytes
	}
	if t.PacketQueueMaxCount == 0 {
		t.PacketQueueMaxCount = d.PacketQueueMaxCount
	}
	if t.AudioFrameQueueSize == 0 {
		t.AudioFrameQueueSize = d.AudioFrameQueueSize
	}
	if t.VideoFrameQueueSize == 0 {
		t.VideoFrameQueueSize = d.VideoFrameQueueSize
	}
	if t.RefreshRateMillis == 0 {
		t.RefreshRateMillis = d.RefreshRateMillis
	}
	if t.ReadBackpressureWaitMillis == 0 {
		t.ReadBackpressureWaitMillis = d.ReadBackpressureWaitMillis
	}
	if t.MaxFrameDurationNormalSeconds == 0 {
		t.MaxFrameDurationNormalSeconds = d.MaxFrameDurationNormalSeconds
	}
	if t.MaxFrameDurationDiscontinuousSeconds == 0 {
		t.MaxFrameDurationDiscontinuousSeconds = d.MaxFrameDurationDiscontinuousSeconds
	}
	return t
}

// Load reads tuning overrides from a YAML file at path. A missing file is
// not an error: Defaults() is returned as-is, matching the teacher's
// tolerance for a missing settings.yml on first run.
func Load(path string) (Tuning, error) {
	d := Defaults()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return d, err
	}

	var t Tuning
	if err := yaml.Unmarshal(b, &t); err != nil {
		return d, err
	}
	return merge(t, d), nil
}

// Save writes t to path via a temp-file-then-rename, matching the
// teacher's SaveConfig atomic-write pattern.
func Save(path string, t Tuning) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(f)
	if err := enc.Encode(&t); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
