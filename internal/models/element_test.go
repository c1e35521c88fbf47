package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestElementsRoundTripKeepsVariants(t *testing.T) {
	in := Elements{
		NewTextElement("t1", "Hello"),
		NewImageElement("i1", "https://example.com/cat.png"),
		NewShapeElement("s1", ShapeTriangle),
	}

	data, err := json.Marshal(in)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, strings.Contains(string(data), `"zIndex":0`))
	assert.Equal(t, true, strings.Contains(string(data), `"shapeType":"triangle"`))

	var out Elements
	assert.Equal(t, nil, json.Unmarshal(data, &out))
	assert.Equal(t, 3, len(out))
	assert.Equal(t, "Hello", out[0].(*TextElement).Text)
	assert.Equal(t, float64(1), out[1].(*ImageElement).Opacity)
	assert.Equal(t, ShapeTriangle, out[2].(*ShapeElement).ShapeType)
}

func TestEmptyElementsMarshalAsArray(t *testing.T) {
	data, err := json.Marshal(Elements(nil))
	assert.Equal(t, nil, err)
	assert.Equal(t, EmptyStorage, string(data))
}

func TestUnknownElementTypeIsValidationError(t *testing.T) {
	var out Elements
	err := json.Unmarshal([]byte(`[{"id":"a","type":"text"},{"id":"b","type":"video"}]`), &out)

	assert.Equal(t, true, IsValidationError(err))
	assert.Equal(t, "[1].type", err.(*ValidationError).Fields[0].Field)
}

func TestCloneIsIndependent(t *testing.T) {
	orig := Elements{NewTextElement("t1", "a")}
	clone := CloneElements(orig)

	clone[0].(*TextElement).Text = "b"
	clone[0].Base().X = 999

	assert.Equal(t, "a", orig[0].(*TextElement).Text)
	assert.Equal(t, float64(100), orig[0].Base().X)
}

func TestApplyIgnoresFieldsOfOtherVariants(t *testing.T) {
	shape := NewShapeElement("s1", ShapeRectangle)
	text := "ignored"
	fill := "#ff0000"
	x := 5.0

	shape.Apply(ElementPatch{X: &x, Text: &text, FillColor: &fill})

	assert.Equal(t, float64(5), shape.X)
	assert.Equal(t, "#ff0000", shape.FillColor)
	assert.Equal(t, "s1", shape.ID)
	assert.Equal(t, ElementShape, shape.Type)
}

func TestValidateElement(t *testing.T) {
	assert.Equal(t, nil, ValidateElement(NewTextElement("t1", "ok")))

	noID := NewTextElement("", "x")
	assert.Equal(t, true, IsValidationError(ValidateElement(noID)))

	img := NewImageElement("i1", "x")
	img.Opacity = 1.5
	err := ValidateElement(img)
	assert.Equal(t, "opacity", err.(*ValidationError).Fields[0].Field)

	shape := NewShapeElement("s1", "hexagon")
	err = ValidateElement(shape)
	assert.Equal(t, "shapeType", err.(*ValidationError).Fields[0].Field)

	wrongType := NewTextElement("t2", "x")
	wrongType.Type = ElementShape
	err = ValidateElement(wrongType)
	assert.Equal(t, "type", err.(*ValidationError).Fields[0].Field)

	negative := NewShapeElement("s2", ShapeCircle)
	negative.Width = -1
	assert.Equal(t, true, IsValidationError(ValidateElement(negative)))

	assert.Equal(t, true, IsValidationError(ValidateElement(nil)))
}

func TestValidateElementsPrefixesIndex(t *testing.T) {
	bad := NewTextElement("t2", "x")
	bad.FontSize = -3

	err := ValidateElements([]Element{NewTextElement("t1", "ok"), bad})
	assert.Equal(t, "canvasElements[1].fontSize", err.(*ValidationError).Fields[0].Field)
}

func TestFindElement(t *testing.T) {
	es := Elements{NewTextElement("a", ""), NewTextElement("b", "")}

	el, i := FindElement(es, "b")
	assert.Equal(t, 1, i)
	assert.Equal(t, "b", el.Base().ID)

	el, i = FindElement(es, "zzz")
	assert.Equal(t, -1, i)
	assert.Equal(t, true, el == nil)
}
