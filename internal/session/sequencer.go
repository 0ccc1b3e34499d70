package session

import (
	"fmt"

	"github.com/ironsheep/rnascope-counter/internal/config"
)

// Prompt tells the user what to draw next.
type Prompt struct {
	Text   string `json:"text"`
	Image  string `json:"image,omitempty"`
	Region string `json:"region,omitempty"`
	Done   bool   `json:"done"`
}

type step struct {
	image  string
	region string
}

// Sequencer walks the user through the expected regions in drawing order.
//
// Each completed polygon advances it by one. When the next region lives on a
// different image, Advance reports the focus switch so the caller can toggle
// layer visibility. After the last region the sequencer disconnects and
// ignores further polygons.
type Sequencer struct {
	steps     []step
	drawn     int
	connected bool
}

// Switch describes a focus change between anatomical images.
type Switch struct {
	From string
	To   string
}

// NewSequencer flattens the groups into a drawing order.
func NewSequencer(groups []config.Group) *Sequencer {
	q := &Sequencer{}
	for _, g := range groups {
		for _, r := range g.Regions {
			q.steps = append(q.steps, step{image: g.Image, region: r})
		}
	}
	q.connected = len(q.steps) > 0
	return q
}

// Connected reports whether polygons are still being counted.
func (q *Sequencer) Connected() bool { return q.connected }

// Drawn returns how many polygons have been counted.
func (q *Sequencer) Drawn() int { return q.drawn }

// ActiveImage returns the image the next polygon is expected on, or "" once
// disconnected.
func (q *Sequencer) ActiveImage() string {
	if !q.connected {
		return ""
	}
	return q.steps[q.drawn].image
}

// Current returns the prompt for the next region.
func (q *Sequencer) Current() Prompt {
	if !q.connected {
		return Prompt{Text: "All regions drawn. Press Analyze.", Done: true}
	}
	s := q.steps[q.drawn]
	return Prompt{
		Text:   fmt.Sprintf("Draw ROI %d: %s on %s", q.drawn+1, s.region, s.image),
		Image:  s.image,
		Region: s.region,
	}
}

// Advance records one completed polygon and returns the region name it was
// drawn for, the next prompt, and a focus switch when the next region is on
// another image. It is a no-op once disconnected.
func (q *Sequencer) Advance() (region string, next Prompt, sw *Switch) {
	if !q.connected {
		return "", q.Current(), nil
	}

	done := q.steps[q.drawn]
	q.drawn++
	if q.drawn >= len(q.steps) {
		q.connected = false
		return done.region, q.Current(), nil
	}

	if to := q.steps[q.drawn].image; to != done.image {
		sw = &Switch{From: done.image, To: to}
	}
	return done.region, q.Current(), sw
}
