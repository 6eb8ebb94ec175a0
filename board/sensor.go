package board

import "math"

// DefaultActivationDistance is how far the pointer must travel before a press becomes a drag.
const DefaultActivationDistance = 8

// PointerSensor turns raw pointer events into Surface drag events.
type PointerSensor struct {
	surface  Surface
	distance float64

	pressed  string
	x0, y0   float64
	dragging bool
}

// NewPointerSensor creates a sensor with the given activation distance.
// Non-positive distances fall back to DefaultActivationDistance.
func NewPointerSensor(s Surface, distance float64) *PointerSensor {
	if distance <= 0 {
		distance = DefaultActivationDistance
	}
	return &PointerSensor{surface: s, distance: distance}
}

// Down records a press on id at (x, y).
func (p *PointerSensor) Down(id string, x, y float64) {
	p.pressed = id
	p.x0, p.y0 = x, y
	p.dragging = false
}

// Move starts the drag once the pointer leaves the activation radius.
func (p *PointerSensor) Move(x, y float64) (Outcome, error) {
	if p.pressed == "" || p.dragging {
		return Outcome{}, nil
	}
	if math.Hypot(x-p.x0, y-p.y0) <= p.distance {
		return Outcome{}, nil
	}
	out, err := p.surface.OnDragStart(p.pressed)
	if err != nil {
		p.pressed = ""
		return Outcome{}, err
	}
	p.dragging = true
	return out, nil
}

// Up releases the pointer over targetID. dragged is false for a plain click.
func (p *PointerSensor) Up(targetID string) (out Outcome, dragged bool) {
	id := p.pressed
	wasDragging := p.dragging
	p.pressed = ""
	p.dragging = false
	if !wasDragging {
		return Outcome{}, false
	}
	return p.surface.OnDragEnd(id, targetID), true
}

// Dragging reports whether the activation threshold has been crossed.
func (p *PointerSensor) Dragging() bool { return p.dragging }
