// Package canvas holds the local canvas state: the element list, the
// selection, and the bounded undo/redo history.
//
// Every operation is a synchronous state transition with no I/O. A State is
// not safe for concurrent use; the editor session owns it from a single
// goroutine.
package canvas

import (
	"sort"

	"canvas-studio/internal/models"
)

// MaxHistory bounds the number of stored snapshots (current + 10 undo steps)
const MaxHistory = 11

// State is the canvas of one open design
type State struct {
	elements models.Elements

	// selectedElementID is a lookup key into elements, "" when nothing is selected
	selectedElementID string

	history      []models.Elements
	historyIndex int

	isSynced     bool
	commentsMode bool
}

// NewState returns an empty canvas whose history holds one empty snapshot
func NewState() *State {
	return &State{
		elements: models.Elements{},
		history:  []models.Elements{{}},
	}
}

// AddElement appends e and commits a snapshot.
// The caller assigns a unique id and the zIndex (see NextZIndex).
func (s *State) AddElement(e models.Element) {
	s.elements = append(s.elements, e.Clone())
	s.commit()
}

// UpdateElement merges patch into the element with the given id.
// It does not commit history: continuous gestures call it once per frame
// and CommitHistory once the gesture ends. Returns false if id is unknown.
func (s *State) UpdateElement(id string, patch models.ElementPatch) bool {
	el, _ := models.FindElement(s.elements, id)
	if el == nil {
		return false
	}
	el.Apply(patch)
	return true
}

// DeleteElement removes the element and clears the selection if it pointed at it
func (s *State) DeleteElement(id string) {
	kept := make(models.Elements, 0, len(s.elements))
	for _, el := range s.elements {
		if el.Base().ID != id {
			kept = append(kept, el)
		}
	}
	s.elements = kept

	if s.selectedElementID == id {
		s.selectedElementID = ""
	}
	s.commit()
}

// SelectElement sets the selection; "" clears it. Selection is not undo-tracked.
func (s *State) SelectElement(id string) {
	s.selectedElementID = id
}

// BringForward swaps the element with the one occupying zIndex+1.
// At the top it leaves ordering alone but still commits a snapshot.
func (s *State) BringForward(id string) {
	el, _ := models.FindElement(s.elements, id)
	if el != nil {
		b := el.Base()
		if b.ZIndex < s.maxZIndex() {
			next := b.ZIndex + 1
			if blocking := s.atZIndex(next); blocking != nil {
				blocking.Base().ZIndex = b.ZIndex
			}
			b.ZIndex = next
		}
	}
	s.commit()
}

// SendBackward swaps the element with the one occupying zIndex-1.
// At the bottom it leaves ordering alone but still commits a snapshot.
func (s *State) SendBackward(id string) {
	el, _ := models.FindElement(s.elements, id)
	if el != nil {
		b := el.Base()
		if b.ZIndex > s.minZIndex() {
			next := b.ZIndex - 1
			if blocking := s.atZIndex(next); blocking != nil {
				blocking.Base().ZIndex = b.ZIndex
			}
			b.ZIndex = next
		}
	}
	s.commit()
}

// ReorderLayer moves draggedID immediately above targetID in the
// top-to-bottom layer order, then renumbers every element so zIndex is a
// permutation of 0..n-1 (top element gets n-1).
func (s *State) ReorderLayer(draggedID, targetID string) {
	order := s.layerOrder()

	draggedIndex := indexOf(order, draggedID)
	targetIndex := indexOf(order, targetID)
	if draggedIndex != -1 && targetIndex != -1 {
		dragged := order[draggedIndex]
		rest := make([]models.Element, 0, len(order))
		rest = append(rest, order[:draggedIndex]...)
		rest = append(rest, order[draggedIndex+1:]...)

		insertAt := indexOf(rest, targetID)
		if insertAt == -1 {
			// dragged onto itself
			insertAt = draggedIndex
		}
		order = make([]models.Element, 0, len(s.elements))
		order = append(order, rest[:insertAt]...)
		order = append(order, dragged)
		order = append(order, rest[insertAt:]...)

		for i, el := range order {
			el.Base().ZIndex = len(order) - 1 - i
		}
	}
	s.commit()
}

// CommitHistory snapshots the current elements, dropping any redo entries
func (s *State) CommitHistory() {
	s.commit()
}

// Undo steps back one snapshot. Returns false at the oldest entry.
func (s *State) Undo() bool {
	if s.historyIndex == 0 {
		return false
	}
	s.historyIndex--
	s.restore()
	return true
}

// Redo steps forward one snapshot. Returns false at the newest entry.
func (s *State) Redo() bool {
	if s.historyIndex >= len(s.history)-1 {
		return false
	}
	s.historyIndex++
	s.restore()
	return true
}

// ClearCanvas resets elements, selection and history to an empty canvas
func (s *State) ClearCanvas() {
	s.elements = models.Elements{}
	s.selectedElementID = ""
	s.history = []models.Elements{{}}
	s.historyIndex = 0
}

// SetElements replaces the element list without touching history.
// Used when the stored design or the shared room document catches up.
func (s *State) SetElements(list []models.Element) {
	s.elements = models.CloneElements(list)
	if s.selectedElementID != "" {
		if el, _ := models.FindElement(s.elements, s.selectedElementID); el == nil {
			s.selectedElementID = ""
		}
	}
}

func (s *State) SetSyncStatus(synced bool) { s.isSynced = synced }

func (s *State) SetCommentsMode(on bool) { s.commentsMode = on }

// commit truncates redo entries, appends a deep copy of elements and
// evicts the oldest snapshot once MaxHistory is exceeded.
func (s *State) commit() {
	history := make([]models.Elements, 0, s.historyIndex+2)
	history = append(history, s.history[:s.historyIndex+1]...)
	history = append(history, models.CloneElements(s.elements))

	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	s.history = history
	s.historyIndex = len(history) - 1
}

func (s *State) restore() {
	s.elements = models.CloneElements(s.history[s.historyIndex])
	s.selectedElementID = ""
}

// maxZIndex never reports below 0, even when every element is negative
func (s *State) maxZIndex() int {
	max := 0
	for _, el := range s.elements {
		if z := el.Base().ZIndex; z > max {
			max = z
		}
	}
	return max
}

// minZIndex never reports above 0, so SendBackward can move a bottom
// element at zIndex 1 down to 0
func (s *State) minZIndex() int {
	min := 0
	for _, el := range s.elements {
		if z := el.Base().ZIndex; z < min {
			min = z
		}
	}
	return min
}

// atZIndex returns the first element in insertion order with the given zIndex
func (s *State) atZIndex(z int) models.Element {
	for _, el := range s.elements {
		if el.Base().ZIndex == z {
			return el
		}
	}
	return nil
}

// layerOrder lists the live elements top to bottom (descending zIndex,
// insertion order among ties)
func (s *State) layerOrder() []models.Element {
	order := make([]models.Element, len(s.elements))
	copy(order, s.elements)
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Base().ZIndex > order[j].Base().ZIndex
	})
	return order
}

func indexOf(es []models.Element, id string) int {
	for i, el := range es {
		if el.Base().ID == id {
			return i
		}
	}
	return -1
}
