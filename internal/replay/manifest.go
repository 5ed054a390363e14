// ABOUTME: Replay manifest definition and loader
// ABOUTME: Describes a simulated ensemble, its services and their audio, labels and slides
package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dabdump/dabdump/internal/dab"
	"gopkg.in/yaml.v3"
)

// Defaults applied to manifest fields left empty
const (
	DefaultSyncDelay   = 500 * time.Millisecond
	DefaultSNRInterval = time.Second
	DefaultChunk       = 120 * time.Millisecond
	DefaultToneRate    = 48000
	DefaultToneLength  = 10 * time.Second
)

// HexID accepts both 0x-prefixed hex and decimal identifiers
type HexID uint32

// UnmarshalYAML parses the scalar with base prefix detection
func (h *HexID) UnmarshalYAML(value *yaml.Node) error {
	v, err := strconv.ParseUint(strings.TrimSpace(value.Value), 0, 32)
	if err != nil {
		return fmt.Errorf("line %d: invalid identifier %q", value.Line, value.Value)
	}
	*h = HexID(v)
	return nil
}

// Manifest is the top-level replay description
type Manifest struct {
	Ensemble    EnsembleSpec  `yaml:"ensemble"`
	SyncDelay   time.Duration `yaml:"sync_delay"`
	SNR         []float64     `yaml:"snr"`
	SNRInterval time.Duration `yaml:"snr_interval"`
	TII         []TIISpec     `yaml:"tii"`

	// Speed scales playback pacing; 1 is real time, 0 delivers as fast as
	// the handlers accept it
	Speed    *float64      `yaml:"speed"`
	Chunk    time.Duration `yaml:"chunk"`
	Services []ServiceSpec `yaml:"services"`

	dir string
}

// EnsembleSpec identifies the simulated multiplex
type EnsembleSpec struct {
	ID    HexID  `yaml:"id"`
	Label string `yaml:"label"`
}

// TIISpec is a transmitter identification result reported after sync
type TIISpec struct {
	Comb         int     `yaml:"comb"`
	Pattern      int     `yaml:"pattern"`
	DelaySamples int     `yaml:"delay_samples"`
	Error        float64 `yaml:"error"`
}

// ServiceSpec describes one programme
type ServiceSpec struct {
	ID         HexID          `yaml:"id"`
	Label      string         `yaml:"label"`
	Type       string         `yaml:"type"`
	Subchannel SubchannelSpec `yaml:"subchannel"`
	Audio      []SegmentSpec  `yaml:"audio"`
	Loop       bool           `yaml:"loop"`

	Labels        []string      `yaml:"labels"`
	LabelInterval time.Duration `yaml:"label_interval"`
	Slides        []SlideSpec   `yaml:"slides"`
	SlideInterval time.Duration `yaml:"slide_interval"`
}

// SubchannelSpec places the service in the simulated MSC
type SubchannelSpec struct {
	ID        int `yaml:"id"`
	Bitrate   int `yaml:"bitrate"`
	StartAddr int `yaml:"start_addr"`
}

// SegmentSpec is one piece of programme audio: a file or a generated tone
type SegmentSpec struct {
	File       string        `yaml:"file"`
	Tone       float64       `yaml:"tone"`
	SampleRate int           `yaml:"sample_rate"`
	Length     time.Duration `yaml:"length"`
}

// SlideSpec is one slideshow object carried in the PAD
type SlideSpec struct {
	File          string `yaml:"file"`
	ContentName   string `yaml:"content_name"`
	ClickThrough  string `yaml:"click_through_url"`
	CategoryTitle string `yaml:"category_title"`
}

// LoadManifest reads and validates a manifest. Relative file paths are
// resolved against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay manifest: %w", err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.dir = filepath.Dir(path)

	return m, nil
}

// ParseManifest decodes a manifest and fills defaults
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse replay manifest: %w", err)
	}

	if err := m.normalize(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) normalize() error {
	if m.SyncDelay <= 0 {
		m.SyncDelay = DefaultSyncDelay
	}
	if m.SNRInterval <= 0 {
		m.SNRInterval = DefaultSNRInterval
	}
	if m.Chunk <= 0 {
		m.Chunk = DefaultChunk
	}
	if m.Speed == nil {
		one := 1.0
		m.Speed = &one
	}
	if *m.Speed < 0 {
		return fmt.Errorf("speed must not be negative")
	}

	seen := make(map[HexID]bool)
	for i := range m.Services {
		s := &m.Services[i]
		if seen[s.ID] {
			return fmt.Errorf("duplicate service %s", dab.ServiceID(s.ID))
		}
		seen[s.ID] = true

		if _, err := parseAudioType(s.Type); err != nil {
			return fmt.Errorf("service %s: %w", dab.ServiceID(s.ID), err)
		}
		if len(s.Audio) == 0 {
			return fmt.Errorf("service %s: no audio segments", dab.ServiceID(s.ID))
		}
		for j := range s.Audio {
			seg := &s.Audio[j]
			if seg.File == "" {
				if seg.SampleRate <= 0 {
					seg.SampleRate = DefaultToneRate
				}
				if seg.Length <= 0 {
					seg.Length = DefaultToneLength
				}
			}
		}
		if len(s.Labels) > 0 && s.LabelInterval <= 0 {
			return fmt.Errorf("service %s: labels need a label_interval", dab.ServiceID(s.ID))
		}
		if len(s.Slides) > 0 && s.SlideInterval <= 0 {
			return fmt.Errorf("service %s: slides need a slide_interval", dab.ServiceID(s.ID))
		}
	}

	return nil
}

// resolve returns path relative to the manifest directory
func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) || m.dir == "" {
		return path
	}
	return filepath.Join(m.dir, path)
}

func parseAudioType(s string) (dab.AudioType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dab+", "dabplus":
		return dab.AudioDABPlus, nil
	case "dab":
		return dab.AudioDAB, nil
	default:
		return dab.AudioUnknown, fmt.Errorf("unknown audio type %q (want dab or dab+)", s)
	}
}

// service converts the spec into the engine's descriptor
func (s ServiceSpec) service() dab.Service {
	return dab.Service{ID: dab.ServiceID(s.ID), Label: s.Label}
}

// slideSubType maps an image extension to its MOT content sub-type
func slideSubType(path string) int {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return dab.MOTSubTypeJFIF
	case ".png":
		return dab.MOTSubTypePNG
	case ".gif":
		return dab.MOTSubTypeGIF
	case ".bmp":
		return dab.MOTSubTypeBMP
	default:
		return 0xff
	}
}
