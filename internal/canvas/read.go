package canvas

import "canvas-studio/internal/models"

// Read accessors return copies; callers cannot reach live elements.

func (s *State) Elements() models.Elements {
	return models.CloneElements(s.elements)
}

// Element returns a copy of one element
func (s *State) Element(id string) (models.Element, bool) {
	el, _ := models.FindElement(s.elements, id)
	if el == nil {
		return nil, false
	}
	return el.Clone(), true
}

func (s *State) Len() int { return len(s.elements) }

// SelectedElementID returns the selection, ok is false when nothing is selected
func (s *State) SelectedElementID() (id string, ok bool) {
	return s.selectedElementID, s.selectedElementID != ""
}

func (s *State) HistoryLen() int   { return len(s.history) }
func (s *State) HistoryIndex() int { return s.historyIndex }
func (s *State) CanUndo() bool     { return s.historyIndex > 0 }
func (s *State) CanRedo() bool     { return s.historyIndex < len(s.history)-1 }
func (s *State) IsSynced() bool    { return s.isSynced }
func (s *State) CommentsMode() bool {
	return s.commentsMode
}

// Snapshot returns a copy of the stored history entry at i
func (s *State) Snapshot(i int) models.Elements {
	return models.CloneElements(s.history[i])
}

// NextZIndex is the zIndex a newly added element should take
func (s *State) NextZIndex() int {
	if len(s.elements) == 0 {
		return 0
	}
	max := s.elements[0].Base().ZIndex
	for _, el := range s.elements[1:] {
		if z := el.Base().ZIndex; z > max {
			max = z
		}
	}
	return max + 1
}

// LayerOrder returns copies of the elements top to bottom, as a layers panel lists them
func (s *State) LayerOrder() models.Elements {
	return models.CloneElements(s.layerOrder())
}
