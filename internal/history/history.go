// Package history implements the linear undo/redo log of document snapshots.
// Continuous operations (drag, resize) stage their intermediate states in a
// live buffer that only enters history when the operation ends, so a drag
// contributes one frame instead of hundreds.
package history

import (
	"sync"

	"github.com/sagar5412/rapidraw/internal/models"
)

// DefaultCapacity is the maximum number of snapshots retained. Once exceeded
// the oldest frame is dropped and the pointer clamped.
const DefaultCapacity = 50

// Stack is a bounded undo/redo history. The pointer always satisfies
// 0 <= pointer < len(frames); the live buffer may diverge from the frame
// under the pointer only while an uncommitted transient operation is active.
type Stack struct {
	mu             sync.Mutex
	frames         [][]models.Shape
	pointer        int
	live           []models.Shape
	hasUncommitted bool
	capacity       int
}

// New creates a Stack seeded with the initial snapshot as frame zero.
func New(initial []models.Shape) *Stack {
	return NewWithCapacity(initial, DefaultCapacity)
}

// NewWithCapacity is New with an explicit frame limit (minimum 1).
func NewWithCapacity(initial []models.Shape, capacity int) *Stack {
	if capacity < 1 {
		capacity = 1
	}
	return &Stack{
		frames:   [][]models.Shape{models.CloneShapes(initial)},
		capacity: capacity,
	}
}

// Commit records a new snapshot: frames after the pointer are truncated, the
// snapshot is appended, and the oldest frame is evicted if the stack is over
// capacity. Any staged transient state is superseded.
func (s *Stack) Commit(shapes []models.Shape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked(shapes)
}

func (s *Stack) commitLocked(shapes []models.Shape) {
	s.frames = append(s.frames[:s.pointer+1], models.CloneShapes(shapes))
	s.pointer = len(s.frames) - 1
	if len(s.frames) > s.capacity {
		s.frames = s.frames[1:]
		s.pointer--
	}
	s.live = nil
	s.hasUncommitted = false
}

// Stage replaces the live buffer without touching history. Used for every
// intermediate state of a continuous operation.
func (s *Stack) Stage(shapes []models.Shape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = models.CloneShapes(shapes)
	s.hasUncommitted = true
}

// CommitPending commits the live buffer if a transient operation is staged.
// Call it exactly once at the natural end of the operation (pointer-up).
func (s *Stack) CommitPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasUncommitted {
		s.commitLocked(s.live)
	}
}

// Undo steps the pointer back (floor zero) and returns the snapshot now
// visible. A staged transient state is committed first so a half-finished
// drag is never silently discarded.
func (s *Stack) Undo() []models.Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasUncommitted {
		s.commitLocked(s.live)
	}
	if s.pointer > 0 {
		s.pointer--
	}
	return models.CloneShapes(s.frames[s.pointer])
}

// Redo steps the pointer forward (ceiling len-1) and returns the snapshot
// now visible.
func (s *Stack) Redo() []models.Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pointer < len(s.frames)-1 {
		s.pointer++
	}
	return models.CloneShapes(s.frames[s.pointer])
}

// Current returns the snapshot the document should display: the live buffer
// while a transient operation is staged, otherwise the frame under the
// pointer.
func (s *Stack) Current() []models.Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasUncommitted {
		return models.CloneShapes(s.live)
	}
	return models.CloneShapes(s.frames[s.pointer])
}

func (s *Stack) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointer > 0 || s.hasUncommitted
}

func (s *Stack) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointer < len(s.frames)-1
}

// Len reports the number of committed frames.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}
