package tts

import (
	"fmt"
	"strings"

	"storyvox/internal/services"
)

// DefaultVoice is used when a request names no voice.
const DefaultVoice = "af_nicole"

// Voice describes one entry in the synthesis voice catalog.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Gender   string `json:"gender"`
}

var catalog = []Voice{
	{ID: "af", Name: "Default", Language: "en-us", Gender: "Female"},
	{ID: "af_bella", Name: "Bella", Language: "en-us", Gender: "Female"},
	{ID: "af_nicole", Name: "Nicole", Language: "en-us", Gender: "Female"},
	{ID: "af_sarah", Name: "Sarah", Language: "en-us", Gender: "Female"},
	{ID: "af_sky", Name: "Sky", Language: "en-us", Gender: "Female"},
	{ID: "am_adam", Name: "Adam", Language: "en-us", Gender: "Male"},
	{ID: "am_michael", Name: "Michael", Language: "en-us", Gender: "Male"},
	{ID: "bf_emma", Name: "Emma", Language: "en-gb", Gender: "Female"},
	{ID: "bf_isabella", Name: "Isabella", Language: "en-gb", Gender: "Female"},
	{ID: "bm_george", Name: "George", Language: "en-gb", Gender: "Male"},
	{ID: "bm_lewis", Name: "Lewis", Language: "en-gb", Gender: "Male"},
}

// Voices returns a copy of the catalog in display order.
func Voices() []Voice {
	out := make([]Voice, len(catalog))
	copy(out, catalog)
	return out
}

// LookupVoice resolves id against the catalog. An empty id selects the
// default voice.
func LookupVoice(id string) (Voice, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = DefaultVoice
	}
	for _, v := range catalog {
		if v.ID == id {
			return v, nil
		}
	}
	return Voice{}, services.Wrap(services.ErrValidation, "tts", "voice", fmt.Sprintf("unknown voice %q", id), nil)
}
