// Package camera provides pan and zoom over the toroidal simulation grid.
package camera

import "math"

// Camera controls the viewport into the grid. Positions are in cells and
// wrap at the grid edges.
type Camera struct {
	// Position is the camera center in grid coordinates
	X, Y float32

	// Zoom is screen pixels per cell
	Zoom float32

	// Viewport dimensions (screen size of the canvas area)
	ViewportW, ViewportH float32

	// Grid dimensions
	WorldW, WorldH float32

	// Zoom constraints
	MinZoom, MaxZoom float32
}

// Rect is an axis-aligned rectangle in grid coordinates.
type Rect struct {
	X, Y, Width, Height float32
}

// New creates a camera centered on the grid, zoomed so the grid exactly
// covers the viewport in its limiting dimension.
func New(viewportW, viewportH, worldW, worldH float32) *Camera {
	c := &Camera{
		X:         worldW / 2,
		Y:         worldH / 2,
		ViewportW: viewportW,
		ViewportH: viewportH,
		WorldW:    worldW,
		WorldH:    worldH,
		MaxZoom:   16.0,
	}
	c.MinZoom = fitZoom(viewportW, viewportH, worldW, worldH)
	c.Zoom = c.MinZoom
	return c
}

// fitZoom is the smallest zoom at which the visible area never exceeds
// the grid, so no cell is shown twice.
func fitZoom(viewportW, viewportH, worldW, worldH float32) float32 {
	return max(viewportW/worldW, viewportH/worldH)
}

// WorldToScreen converts grid coordinates to screen coordinates, taking
// the shortest way around the torus.
func (c *Camera) WorldToScreen(wx, wy float32) (sx, sy float32) {
	dx := toroidalDelta(wx, c.X, c.WorldW)
	dy := toroidalDelta(wy, c.Y, c.WorldH)

	sx = c.ViewportW/2 + dx*c.Zoom
	sy = c.ViewportH/2 + dy*c.Zoom
	return sx, sy
}

// ScreenToWorld converts screen coordinates to wrapped grid coordinates.
func (c *Camera) ScreenToWorld(sx, sy float32) (wx, wy float32) {
	dx := (sx - c.ViewportW/2) / c.Zoom
	dy := (sy - c.ViewportH/2) / c.Zoom

	wx = mod(c.X+dx, c.WorldW)
	wy = mod(c.Y+dy, c.WorldH)
	return wx, wy
}

// CellAt returns the integer cell under a screen position.
func (c *Camera) CellAt(sx, sy float32) (x, y int) {
	wx, wy := c.ScreenToWorld(sx, sy)
	x = min(int(wx), int(c.WorldW)-1)
	y = min(int(wy), int(c.WorldH)-1)
	return x, y
}

// Resize updates viewport dimensions and recalculates zoom constraints.
func (c *Camera) Resize(viewportW, viewportH float32) {
	if viewportW == c.ViewportW && viewportH == c.ViewportH {
		return
	}
	c.ViewportW = viewportW
	c.ViewportH = viewportH
	c.MinZoom = fitZoom(viewportW, viewportH, c.WorldW, c.WorldH)
	if c.Zoom < c.MinZoom {
		c.Zoom = c.MinZoom
	}
}

// Pan moves the camera by the given delta in screen pixels.
func (c *Camera) Pan(dx, dy float32) {
	c.X = mod(c.X+dx/c.Zoom, c.WorldW)
	c.Y = mod(c.Y+dy/c.Zoom, c.WorldH)
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float32) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float32) {
	c.SetZoom(c.Zoom * factor)
}

// ZoomAt zooms by factor keeping the cell under (sx, sy) fixed on screen.
func (c *Camera) ZoomAt(sx, sy, factor float32) {
	before := c.Zoom
	c.ZoomBy(factor)
	if c.Zoom == before {
		return
	}
	// Shift the center so the anchor stays put.
	ox := sx - c.ViewportW/2
	oy := sy - c.ViewportH/2
	c.X = mod(c.X+ox/before-ox/c.Zoom, c.WorldW)
	c.Y = mod(c.Y+oy/before-oy/c.Zoom, c.WorldH)
}

// Reset returns the camera to the grid center at fit zoom.
func (c *Camera) Reset() {
	c.X = c.WorldW / 2
	c.Y = c.WorldH / 2
	c.Zoom = c.MinZoom
}

// VisibleWorldBounds returns the grid-coordinate bounds of the visible
// area. The bounds are not wrapped: min may be negative and max may exceed
// the grid size when the view straddles an edge.
func (c *Camera) VisibleWorldBounds() (minX, minY, maxX, maxY float32) {
	halfW := c.ViewportW / (2 * c.Zoom)
	halfH := c.ViewportH / (2 * c.Zoom)

	minX = c.X - halfW
	maxX = c.X + halfW
	minY = c.Y - halfH
	maxY = c.Y + halfH
	return
}

// SourceRect is the visible area as a texture source rectangle. Drawing it
// from a texture with repeat wrapping shows the torus seamlessly.
func (c *Camera) SourceRect() Rect {
	minX, minY, maxX, maxY := c.VisibleWorldBounds()
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// toroidalDelta computes the shortest signed distance from 'from' to 'to'
// in a toroidal space of the given size.
func toroidalDelta(to, from, size float32) float32 {
	d := to - from
	if d > size/2 {
		d -= size
	} else if d < -size/2 {
		d += size
	}
	return d
}

// mod computes the positive modulo (Go's % can return negative).
func mod(x, m float32) float32 {
	r := float32(math.Mod(float64(x), float64(m)))
	if r < 0 {
		r += m
	}
	return r
}

func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
