// ABOUTME: NDJSON record definitions for capture logs and telemetry
// ABOUTME: Each line is a single-key object whose key tags the record kind
package record

// Record tags. The tag is the only key of the enclosing JSON object, e.g.
// {"dls":{"value":"Now playing","ts":1700000000}}
const (
	TagDLS      = "dls"
	TagMOT      = "mot"
	TagEnsemble = "ensemble"
	TagService  = "service"
	TagSNR      = "snr"
	TagUTCTime  = "UTCTime"
	TagTII      = "TII"
)

// DLS is a dynamic label update for one service
type DLS struct {
	Value string `json:"value"`
	TS    int64  `json:"ts"`
}

// MOT references a slideshow object written next to the log
type MOT struct {
	File            string `json:"file"`
	ContentName     string `json:"content_name"`
	ClickThroughURL string `json:"click_through_url"`
	CategoryTitle   string `json:"category_title"`
	TS              int64  `json:"ts"`
}

// Ensemble is written once per service log at registration time
type Ensemble struct {
	EnsembleID    uint16 `json:"ensembleId"`
	EnsembleLabel string `json:"ensembleLabel"`
	Session       string `json:"session"`
	TS            int64  `json:"ts"`
}

// Service is written once per service log at registration time
type Service struct {
	ServiceID    uint32 `json:"serviceId"`
	ServiceLabel string `json:"serviceLabel"`
	TS           int64  `json:"ts"`
}

// SNR is a signal-to-noise telemetry sample
type SNR struct {
	TS    int64   `json:"ts"`
	Value float64 `json:"value"`
}

// UTCTime mirrors the ensemble date and time
type UTCTime struct {
	Year    int `json:"year"`
	Month   int `json:"month"`
	Day     int `json:"day"`
	Hour    int `json:"hour"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// TII is one transmitter identification measurement
type TII struct {
	Comb    int     `json:"comb"`
	Pattern int     `json:"pattern"`
	Delay   int     `json:"delay"`
	DelayKm float64 `json:"delay_km"`
	Error   float64 `json:"error"`
}
