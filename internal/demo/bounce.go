// Package demo animates a few squares bouncing around the overlay. It has
// nothing to do with capture; it only shares the render loop.
package demo

import "image"

// ObjectSize is the side of every bouncing square.
const ObjectSize = 50

// Object is one moving square.
type Object struct {
	X, Y   int
	VX, VY int
}

// Rect returns the area the object covers.
func (o Object) Rect() image.Rectangle {
	return image.Rect(o.X, o.Y, o.X+ObjectSize, o.Y+ObjectSize)
}

// Scene holds the moving objects and the area they bounce in.
type Scene struct {
	Bounds  image.Rectangle
	Objects []Object
}

// NewScene returns the default three objects bouncing inside bounds.
func NewScene(bounds image.Rectangle) *Scene {
	return &Scene{
		Bounds: bounds,
		Objects: []Object{
			{X: 50, Y: 50, VX: 5, VY: 3},
			{X: 100, Y: 100, VX: -3, VY: 4},
			{X: 200, Y: 150, VX: 4, VY: -2},
		},
	}
}

// Step advances every object by its velocity, reversing direction when it
// leaves the bounds.
func (s *Scene) Step() {
	for i := range s.Objects {
		o := &s.Objects[i]
		o.X += o.VX
		o.Y += o.VY

		if o.X < s.Bounds.Min.X || o.X > s.Bounds.Max.X-ObjectSize {
			o.VX = -o.VX
		}
		if o.Y < s.Bounds.Min.Y || o.Y > s.Bounds.Max.Y-ObjectSize {
			o.VY = -o.VY
		}
	}
}

// Snapshot returns a copy of the objects for drawing.
func (s *Scene) Snapshot() []Object {
	return append([]Object(nil), s.Objects...)
}
