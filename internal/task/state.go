package task

import (
	"time"

	"github.com/halcyard/brandforge/internal/brand"
)

// State is the mutable record of one orchestration run. It is owned by the
// executor for the duration of the run and discarded at run end; persisting
// the constitution or generated image is the caller's job.
type State struct {
	SessionID      string
	StartTime      time.Time
	CurrentRole    Role
	Constitution   *brand.Constitution
	CurrentImage   []byte
	ExpandedPrompt string
	CanvasElements []CanvasElement
}

// NewState returns a zeroed run state with a fresh session id.
func NewState() *State {
	return &State{
		SessionID: NewSessionID(),
		StartTime: time.Now(),
	}
}

// HasConstitution reports whether a brand constitution is available.
func (s *State) HasConstitution() bool { return s.Constitution != nil }

// HasCanvas reports whether the caller supplied any canvas elements.
func (s *State) HasCanvas() bool { return len(s.CanvasElements) > 0 }

// HasImage reports whether an image has been produced in this run.
func (s *State) HasImage() bool { return len(s.CurrentImage) > 0 }
