package canvas

import (
	"fmt"
	"testing"

	"github.com/go-playground/assert/v2"

	"canvas-studio/internal/models"
)

func text(id string, z int) *models.TextElement {
	e := models.NewTextElement(id, "Hello")
	e.ZIndex = z
	e.Name = id
	return e
}

func shape(id string, z int) *models.ShapeElement {
	e := models.NewShapeElement(id, models.ShapeRectangle)
	e.ZIndex = z
	e.Name = id
	return e
}

func zIndexes(s *State) map[string]int {
	out := map[string]int{}
	for _, el := range s.Elements() {
		out[el.Base().ID] = el.Base().ZIndex
	}
	return out
}

func TestNewState(t *testing.T) {
	s := NewState()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1, s.HistoryLen())
	assert.Equal(t, 0, s.HistoryIndex())
	assert.Equal(t, false, s.CanUndo())
	assert.Equal(t, false, s.CanRedo())
}

func TestAddElementCommitsHistory(t *testing.T) {
	s := NewState()
	s.AddElement(text("text-1", 0))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, s.HistoryLen())
	assert.Equal(t, 1, s.HistoryIndex())
	assert.Equal(t, 1, len(s.Snapshot(1)))
}

func TestAddElementCopiesInput(t *testing.T) {
	s := NewState()
	e := text("text-1", 0)
	s.AddElement(e)

	e.X = 999
	got, _ := s.Element("text-1")
	assert.Equal(t, float64(100), got.Base().X)
}

func TestUpdateElement(t *testing.T) {
	s := NewState()
	s.AddElement(text("text-1", 0))

	updated := "Updated"
	size := 32.0
	ok := s.UpdateElement("text-1", models.ElementPatch{Text: &updated, FontSize: &size})
	assert.Equal(t, true, ok)

	got, _ := s.Element("text-1")
	te := got.(*models.TextElement)
	assert.Equal(t, "Updated", te.Text)
	assert.Equal(t, 32.0, te.FontSize)

	// no commit on update
	assert.Equal(t, 2, s.HistoryLen())
}

func TestUpdateElementIgnoresOtherVariantFields(t *testing.T) {
	s := NewState()
	s.AddElement(shape("shape-1", 0))

	label := "ignored"
	fill := "#ff0000"
	s.UpdateElement("shape-1", models.ElementPatch{Text: &label, FillColor: &fill})

	got, _ := s.Element("shape-1")
	assert.Equal(t, "#ff0000", got.(*models.ShapeElement).FillColor)
}

func TestUpdateUnknownElementIsNoop(t *testing.T) {
	s := NewState()
	x := 50.0
	ok := s.UpdateElement("non-existent", models.ElementPatch{X: &x})

	assert.Equal(t, false, ok)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1, s.HistoryLen())
}

func TestUpdateDoesNotRewriteHistory(t *testing.T) {
	s := NewState()
	s.AddElement(text("text-1", 0))

	x := 500.0
	s.UpdateElement("text-1", models.ElementPatch{X: &x})

	assert.Equal(t, float64(100), s.Snapshot(1)[0].Base().X)
}

func TestDeleteElement(t *testing.T) {
	s := NewState()
	s.AddElement(text("text-1", 0))
	s.DeleteElement("text-1")

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 3, s.HistoryLen())
}

func TestDeleteClearsSelection(t *testing.T) {
	s := NewState()
	s.AddElement(text("text-1", 0))
	s.AddElement(shape("shape-1", 1))

	s.SelectElement("text-1")
	s.DeleteElement("shape-1")
	id, ok := s.SelectedElementID()
	assert.Equal(t, true, ok)
	assert.Equal(t, "text-1", id)

	s.DeleteElement("text-1")
	_, ok = s.SelectedElementID()
	assert.Equal(t, false, ok)
}

func TestSelectDoesNotCommit(t *testing.T) {
	s := NewState()
	s.AddElement(text("text-1", 0))
	s.SelectElement("text-1")
	s.SelectElement("")

	assert.Equal(t, 2, s.HistoryLen())
}

func TestBringForwardSwaps(t *testing.T) {
	s := NewState()
	s.AddElement(text("a", 0))
	s.AddElement(shape("b", 1))

	s.BringForward("a")
	z := zIndexes(s)
	assert.Equal(t, 1, z["a"])
	assert.Equal(t, 0, z["b"])
}

func TestBringForwardAtTopStillCommits(t *testing.T) {
	s := NewState()
	s.AddElement(text("a", 0))
	s.AddElement(shape("b", 1))
	before := s.HistoryLen()

	s.BringForward("b")
	z := zIndexes(s)
	assert.Equal(t, 0, z["a"])
	assert.Equal(t, 1, z["b"])
	assert.Equal(t, before+1, s.HistoryLen())
}

func TestSendBackwardSwaps(t *testing.T) {
	s := NewState()
	s.AddElement(text("a", 0))
	s.AddElement(shape("b", 1))

	s.SendBackward("b")
	z := zIndexes(s)
	assert.Equal(t, 1, z["a"])
	assert.Equal(t, 0, z["b"])
}

func TestSendBackwardAtBottomIsNoop(t *testing.T) {
	s := NewState()
	s.AddElement(text("a", 0))
	s.AddElement(shape("b", 1))

	s.SendBackward("a")
	z := zIndexes(s)
	assert.Equal(t, 0, z["a"])
	assert.Equal(t, 1, z["b"])
}

func TestSendBackwardFloorIsZero(t *testing.T) {
	s := NewState()
	s.AddElement(text("a", 1))
	s.AddElement(shape("b", 2))

	s.SendBackward("a")
	z := zIndexes(s)
	assert.Equal(t, 0, z["a"])
	assert.Equal(t, 2, z["b"])

	s.SendBackward("a")
	assert.Equal(t, 0, zIndexes(s)["a"])
}

func TestBringForwardTieTakesFirstMatch(t *testing.T) {
	s := NewState()
	s.AddElement(text("a", 0))
	s.AddElement(shape("b", 1))
	s.AddElement(shape("c", 1))

	s.BringForward("a")
	z := zIndexes(s)
	assert.Equal(t, 1, z["a"])
	assert.Equal(t, 0, z["b"])
	assert.Equal(t, 1, z["c"])
}

func TestReorderLayerTwoElements(t *testing.T) {
	for _, start := range [][2]int{{0, 1}, {1, 0}} {
		s := NewState()
		s.AddElement(text("a", start[0]))
		s.AddElement(shape("b", start[1]))

		s.ReorderLayer("a", "b")
		z := zIndexes(s)
		assert.Equal(t, true, z["a"] > z["b"])
	}
}

func TestReorderLayerReassignsAll(t *testing.T) {
	s := NewState()
	s.AddElement(text("a", 0))
	s.AddElement(shape("b", 5))
	s.AddElement(shape("c", 9))
	s.AddElement(shape("d", 9))

	// top to bottom: c, d, b, a ; move a above d
	s.ReorderLayer("a", "d")

	order := s.LayerOrder()
	ids := []string{}
	for _, el := range order {
		ids = append(ids, el.Base().ID)
	}
	assert.Equal(t, []string{"c", "a", "d", "b"}, ids)

	z := zIndexes(s)
	assert.Equal(t, 3, z["c"])
	assert.Equal(t, 2, z["a"])
	assert.Equal(t, 1, z["d"])
	assert.Equal(t, 0, z["b"])
}

func TestReorderLayerUnknownIdsCommitOnly(t *testing.T) {
	s := NewState()
	s.AddElement(text("a", 0))

	s.ReorderLayer("a", "missing")
	assert.Equal(t, 0, zIndexes(s)["a"])
	assert.Equal(t, 3, s.HistoryLen())
}

func TestUndoRedoSingleAdd(t *testing.T) {
	s := NewState()
	e := text("text-1", 0)
	s.AddElement(e)

	assert.Equal(t, true, s.Undo())
	assert.Equal(t, 0, s.Len())

	assert.Equal(t, true, s.Redo())
	assert.Equal(t, 1, s.Len())
	got, _ := s.Element("text-1")
	assert.Equal(t, e, got)
}

func TestUndoRedoBounds(t *testing.T) {
	s := NewState()
	assert.Equal(t, false, s.Undo())
	assert.Equal(t, false, s.Redo())
	assert.Equal(t, 0, s.HistoryIndex())
}

func TestUndoClearsSelection(t *testing.T) {
	s := NewState()
	s.AddElement(text("a", 0))
	s.AddElement(shape("b", 1))
	s.SelectElement("a")

	s.Undo()
	_, ok := s.SelectedElementID()
	assert.Equal(t, false, ok)
}

func TestCommitAfterUndoDropsRedo(t *testing.T) {
	s := NewState()
	s.AddElement(text("a", 0))
	s.AddElement(shape("b", 1))
	s.Undo()
	assert.Equal(t, true, s.CanRedo())

	s.AddElement(shape("c", 1))
	assert.Equal(t, false, s.CanRedo())
	assert.Equal(t, 3, s.HistoryLen())
}

func TestHistoryIsBounded(t *testing.T) {
	s := NewState()
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("el-%d", i)
		switch i % 3 {
		case 0, 1:
			s.AddElement(shape(id, s.NextZIndex()))
		default:
			s.DeleteElement(fmt.Sprintf("el-%d", i-1))
			s.ReorderLayer(fmt.Sprintf("el-%d", i-2), fmt.Sprintf("el-%d", 0))
		}
		assert.Equal(t, true, s.HistoryLen() <= MaxHistory)
		assert.Equal(t, s.HistoryLen()-1, s.HistoryIndex())
	}
	assert.Equal(t, MaxHistory, s.HistoryLen())
}

func TestHistoryEvictionKeepsCurrent(t *testing.T) {
	s := NewState()
	for i := 0; i < MaxHistory+3; i++ {
		s.AddElement(shape(fmt.Sprintf("el-%d", i), i))
	}

	assert.Equal(t, MaxHistory, s.HistoryLen())
	assert.Equal(t, MaxHistory-1, s.HistoryIndex())
	assert.Equal(t, s.Elements(), s.Snapshot(s.HistoryIndex()))

	// oldest reachable snapshot is no longer the empty canvas
	for s.Undo() {
	}
	assert.Equal(t, 4, s.Len())
}

func TestCommitHistoryAfterGesture(t *testing.T) {
	s := NewState()
	s.AddElement(shape("a", 0))
	for i := 0; i < 30; i++ {
		x := float64(i)
		s.UpdateElement("a", models.ElementPatch{X: &x})
	}
	s.CommitHistory()

	assert.Equal(t, 3, s.HistoryLen())
	assert.Equal(t, float64(29), s.Snapshot(2)[0].Base().X)

	s.Undo()
	got, _ := s.Element("a")
	assert.Equal(t, float64(200), got.Base().X)
}

func TestClearCanvas(t *testing.T) {
	s := NewState()
	s.AddElement(shape("a", 0))
	s.SelectElement("a")
	s.ClearCanvas()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1, s.HistoryLen())
	assert.Equal(t, 0, s.HistoryIndex())
	_, ok := s.SelectedElementID()
	assert.Equal(t, false, ok)
}

func TestSetElementsIsIdempotent(t *testing.T) {
	s := NewState()
	list := models.Elements{text("a", 0), shape("b", 1)}

	s.SetElements(list)
	first := s.Elements()
	s.SetElements(list)

	assert.Equal(t, first, s.Elements())
	assert.Equal(t, 1, s.HistoryLen())
}

func TestSetElementsDropsDanglingSelection(t *testing.T) {
	s := NewState()
	s.SetElements(models.Elements{text("a", 0)})
	s.SelectElement("a")

	s.SetElements(models.Elements{shape("b", 0)})
	_, ok := s.SelectedElementID()
	assert.Equal(t, false, ok)
}

func TestNextZIndex(t *testing.T) {
	s := NewState()
	assert.Equal(t, 0, s.NextZIndex())
	s.AddElement(shape("a", 4))
	s.AddElement(shape("b", 2))
	assert.Equal(t, 5, s.NextZIndex())
}

func TestModes(t *testing.T) {
	s := NewState()
	s.SetSyncStatus(true)
	s.SetCommentsMode(true)
	assert.Equal(t, true, s.IsSynced())
	assert.Equal(t, true, s.CommentsMode())
	assert.Equal(t, 1, s.HistoryLen())
}
