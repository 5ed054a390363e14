// ABOUTME: DAB data model shared by the receiver and the capture core
// ABOUTME: Service identifiers, ensemble/service descriptors, MOT objects, TII and date/time
package dab

import (
	"fmt"
	"strings"
)

// ServiceID is a DAB Service Identifier (SId), unique within one ensemble
type ServiceID uint32

// String renders the SId as 0x-prefixed hex, zero-padded to 4 digits.
// Distinct ids always render differently.
func (id ServiceID) String() string {
	return fmt.Sprintf("0x%04x", uint32(id))
}

// Service describes one programme carried by the ensemble
type Service struct {
	ID    ServiceID
	Label string
}

// AudioType is the ASCTy of an audio service component
type AudioType int

const (
	AudioUnknown AudioType = iota
	AudioDAB
	AudioDABPlus
)

func (t AudioType) String() string {
	switch t {
	case AudioDABPlus:
		return "DAB+"
	case AudioDAB:
		return "DAB"
	default:
		return "unknown"
	}
}

// Component is one service component (programme audio or data)
type Component struct {
	Number       int
	Type         AudioType
	SubchannelID int
}

// Subchannel describes where a component sits in the MSC
type Subchannel struct {
	ID        int
	Bitrate   int // kbit/s
	StartAddr int // capacity units
}

// Ensemble identifies the multiplex
type Ensemble struct {
	ID    uint16
	Label string
}

// MOTFile is a Multimedia Object Transfer object, typically a slideshow image
type MOTFile struct {
	Data            []byte
	ContentSubType  int
	ContentName     string
	ClickThroughURL string
	CategoryTitle   string
}

// MOT image content sub-types (ETSI TS 101 756 table 17)
const (
	MOTSubTypeGIF  = 0x00
	MOTSubTypeJFIF = 0x01
	MOTSubTypeBMP  = 0x02
	MOTSubTypePNG  = 0x03
)

// DateTime is the UTC date and time signalled in FIG 0/10
type DateTime struct {
	Year    int `json:"year"`
	Month   int `json:"month"`
	Day     int `json:"day"`
	Hour    int `json:"hour"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// Transmission mode I sample clock used by the TII delay measurement
const (
	SampleRateHz     = 2048000
	speedOfLightKmPS = 299792.458
)

// TIIMeasurement is one Transmitter Identification Information result
type TIIMeasurement struct {
	Comb         int
	Pattern      int
	DelaySamples int
	Error        float64
}

// DelayKm converts the measured delay into a propagation distance
func (m TIIMeasurement) DelayKm() float64 {
	return float64(m.DelaySamples) / SampleRateHz * speedOfLightKmPS
}

// MessageLevel tags receiver diagnostic messages
type MessageLevel int

const (
	LevelInformation MessageLevel = iota
	LevelError
)

func (l MessageLevel) String() string {
	if l == LevelError {
		return "Error"
	}
	return "Info"
}

// TrimLabel strips the padding DAB labels carry on both ends
func TrimLabel(s string) string {
	return strings.TrimSpace(s)
}
