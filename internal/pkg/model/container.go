package model

// Container is the area a plot is drawn into.
type Container interface {
	// Size returns the current width and height in pixels.
	Size() (width, height int)
}

// Box is a fixed-size [Container].
type Box struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Size of the box.
func (b Box) Size() (int, int) {
	return b.Width, b.Height
}
