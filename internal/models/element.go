package models

import (
	"encoding/json"
	"fmt"
)

/*
CANVAS ELEMENTS

A canvas holds three kinds of elements. They share geometry (BaseElement)
and differ in how they are painted:

  text  → text, fontSize, fontFamily, color
  image → src, opacity, borderRadius
  shape → shapeType, fillColor, strokeColor, strokeWidth

On the wire every element is a flat JSON object with a "type" discriminator,
so a list of elements round-trips through the room document, the design
store and the export endpoint unchanged.
*/

type ElementType string

const (
	ElementText  ElementType = "text"
	ElementImage ElementType = "image"
	ElementShape ElementType = "shape"
)

type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeCircle    ShapeType = "circle"
	ShapeTriangle  ShapeType = "triangle"
)

// Element is the closed set of canvas element variants.
// Dispatch with a type switch on *TextElement, *ImageElement, *ShapeElement.
type Element interface {
	// Base exposes the shared attributes for in-place edits.
	Base() *BaseElement
	Kind() ElementType
	// Clone returns a deep, independent copy.
	Clone() Element
	// Apply merges the patch fields that make sense for the variant.
	Apply(patch ElementPatch)

	isElement()
}

// BaseElement holds the attributes common to every variant
type BaseElement struct {
	ID       string      `json:"id" validate:"required"`
	Type     ElementType `json:"type" validate:"oneof=text image shape"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Width    float64     `json:"width" validate:"gte=0"`
	Height   float64     `json:"height" validate:"gte=0"`
	Rotation float64     `json:"rotation"`
	ZIndex   int         `json:"zIndex"`
	Name     string      `json:"name"`
}

func (b *BaseElement) Base() *BaseElement { return b }

func (b *BaseElement) apply(p ElementPatch) {
	if p.X != nil {
		b.X = *p.X
	}
	if p.Y != nil {
		b.Y = *p.Y
	}
	if p.Width != nil {
		b.Width = *p.Width
	}
	if p.Height != nil {
		b.Height = *p.Height
	}
	if p.Rotation != nil {
		b.Rotation = *p.Rotation
	}
	if p.ZIndex != nil {
		b.ZIndex = *p.ZIndex
	}
	if p.Name != nil {
		b.Name = *p.Name
	}
}

type TextElement struct {
	BaseElement
	Text       string  `json:"text"`
	FontSize   float64 `json:"fontSize" validate:"gte=0"`
	FontFamily string  `json:"fontFamily"`
	Color      string  `json:"color"`
}

func (e *TextElement) Kind() ElementType { return ElementText }
func (e *TextElement) isElement()        {}

func (e *TextElement) Clone() Element {
	c := *e
	return &c
}

func (e *TextElement) Apply(p ElementPatch) {
	e.BaseElement.apply(p)
	if p.Text != nil {
		e.Text = *p.Text
	}
	if p.FontSize != nil {
		e.FontSize = *p.FontSize
	}
	if p.FontFamily != nil {
		e.FontFamily = *p.FontFamily
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
}

type ImageElement struct {
	BaseElement
	Src          string  `json:"src"`
	Opacity      float64 `json:"opacity" validate:"gte=0,lte=1"`
	BorderRadius float64 `json:"borderRadius" validate:"gte=0"`
}

func (e *ImageElement) Kind() ElementType { return ElementImage }
func (e *ImageElement) isElement()        {}

func (e *ImageElement) Clone() Element {
	c := *e
	return &c
}

func (e *ImageElement) Apply(p ElementPatch) {
	e.BaseElement.apply(p)
	if p.Src != nil {
		e.Src = *p.Src
	}
	if p.Opacity != nil {
		e.Opacity = *p.Opacity
	}
	if p.BorderRadius != nil {
		e.BorderRadius = *p.BorderRadius
	}
}

type ShapeElement struct {
	BaseElement
	ShapeType   ShapeType `json:"shapeType" validate:"oneof=rectangle circle triangle"`
	FillColor   string    `json:"fillColor"`
	StrokeColor string    `json:"strokeColor"`
	StrokeWidth float64   `json:"strokeWidth" validate:"gte=0"`
}

func (e *ShapeElement) Kind() ElementType { return ElementShape }
func (e *ShapeElement) isElement()        {}

func (e *ShapeElement) Clone() Element {
	c := *e
	return &c
}

func (e *ShapeElement) Apply(p ElementPatch) {
	e.BaseElement.apply(p)
	if p.ShapeType != nil {
		e.ShapeType = *p.ShapeType
	}
	if p.FillColor != nil {
		e.FillColor = *p.FillColor
	}
	if p.StrokeColor != nil {
		e.StrokeColor = *p.StrokeColor
	}
	if p.StrokeWidth != nil {
		e.StrokeWidth = *p.StrokeWidth
	}
}

// ElementPatch is a partial update. Nil fields are left untouched and
// fields of another variant are ignored. id and type cannot be patched.
type ElementPatch struct {
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
	ZIndex   *int     `json:"zIndex,omitempty"`
	Name     *string  `json:"name,omitempty"`

	Text       *string  `json:"text,omitempty"`
	FontSize   *float64 `json:"fontSize,omitempty"`
	FontFamily *string  `json:"fontFamily,omitempty"`
	Color      *string  `json:"color,omitempty"`

	Src          *string  `json:"src,omitempty"`
	Opacity      *float64 `json:"opacity,omitempty"`
	BorderRadius *float64 `json:"borderRadius,omitempty"`

	ShapeType   *ShapeType `json:"shapeType,omitempty"`
	FillColor   *string    `json:"fillColor,omitempty"`
	StrokeColor *string    `json:"strokeColor,omitempty"`
	StrokeWidth *float64   `json:"strokeWidth,omitempty"`
}

// Elements is an ordered element list with discriminator-aware JSON.
type Elements []Element

// MarshalJSON always emits an array, never null, so an empty canvas
// serializes to "[]".
func (es Elements) MarshalJSON() ([]byte, error) {
	if len(es) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]Element(es))
}

func (es *Elements) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	out := make(Elements, 0, len(raws))
	for i, raw := range raws {
		el, err := DecodeElement(raw)
		if err != nil {
			return prefixFields(err, fmt.Sprintf("[%d]", i))
		}
		out = append(out, el)
	}
	*es = out
	return nil
}

// DecodeElement decodes one element by peeking at its "type" field.
func DecodeElement(raw []byte) (Element, error) {
	var head struct {
		Type ElementType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	var el Element
	switch head.Type {
	case ElementText:
		el = &TextElement{}
	case ElementImage:
		el = &ImageElement{}
	case ElementShape:
		el = &ShapeElement{}
	default:
		return nil, &ValidationError{Fields: []FieldError{{
			Field:   "type",
			Message: fmt.Sprintf("must be one of [text image shape], got %q", head.Type),
		}}}
	}

	if err := json.Unmarshal(raw, el); err != nil {
		return nil, err
	}
	return el, nil
}

// CloneElements deep-copies a list. The result never aliases the input.
func CloneElements(es []Element) Elements {
	out := make(Elements, len(es))
	for i, e := range es {
		out[i] = e.Clone()
	}
	return out
}

// FindElement returns the first element with the given id.
func FindElement(es []Element, id string) (Element, int) {
	for i, e := range es {
		if e.Base().ID == id {
			return e, i
		}
	}
	return nil, -1
}

// Default element factories used by the toolbar-style commands.

func NewTextElement(id, text string) *TextElement {
	return &TextElement{
		BaseElement: BaseElement{ID: id, Type: ElementText, X: 100, Y: 100, Width: 200, Height: 60, Name: "Text"},
		Text:        text,
		FontSize:    24,
		FontFamily:  "Arial",
		Color:       "#000000",
	}
}

func NewShapeElement(id string, shape ShapeType) *ShapeElement {
	return &ShapeElement{
		BaseElement: BaseElement{ID: id, Type: ElementShape, X: 200, Y: 200, Width: 150, Height: 150, Name: "Shape"},
		ShapeType:   shape,
		FillColor:   "#3b82f6",
		StrokeColor: "#1e40af",
		StrokeWidth: 2,
	}
}

func NewImageElement(id, src string) *ImageElement {
	return &ImageElement{
		BaseElement: BaseElement{ID: id, Type: ElementImage, X: 150, Y: 150, Width: 200, Height: 200, Name: "Image"},
		Src:         src,
		Opacity:     1,
	}
}
