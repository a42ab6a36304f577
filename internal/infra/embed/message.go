package embed

import "fmt"

// Commands sent to the page.
const (
	opCreate  = "create"
	opPlay    = "play"
	opPause   = "pause"
	opSeek    = "seek"
	opVolume  = "volume"
	opGetTime = "getTime"
	opDestroy = "destroy"
)

// Events reported by the page.
const (
	eventReady = "ready"
	eventState = "state"
	eventError = "error"
	eventTime  = "time"
)

// Player states as reported by the iframe API.
const (
	stateUnstarted = -1
	stateEnded     = 0
	statePlaying   = 1
	statePaused    = 2
	stateBuffering = 3
	stateCued      = 5
)

type command struct {
	Op             string  `json:"op"`
	Handle         string  `json:"handle"`
	VideoID        string  `json:"videoId,omitempty"`
	Autoplay       bool    `json:"autoplay,omitempty"`
	Controls       bool    `json:"controls,omitempty"`
	Volume         int     `json:"volume"`
	Seconds        float64 `json:"seconds"`
	AllowSeekAhead bool    `json:"allowSeekAhead,omitempty"`
	Request        string  `json:"request,omitempty"`
}

type pageEvent struct {
	Event    string  `json:"event"`
	Handle   string  `json:"handle"`
	State    int     `json:"state"`
	Code     int     `json:"code"`
	Duration float64 `json:"duration"`
	Seconds  float64 `json:"seconds"`
	Request  string  `json:"request"`
}

// PlayerError is an error code reported by the iframe player.
type PlayerError struct {
	Code int
}

func (e *PlayerError) Error() string {
	switch e.Code {
	case 2:
		return "embedded player: invalid video id"
	case 5:
		return "embedded player: html5 playback error"
	case 100:
		return "embedded player: video not found"
	case 101, 150:
		return "embedded player: embedding not allowed"
	default:
		return fmt.Sprintf("embedded player: error %d", e.Code)
	}
}
