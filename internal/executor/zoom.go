package executor

// ZoomScroll returns the scroll offset along one axis that keeps the content
// point under anchor fixed when the scale goes from oldScale to newScale.
// A non-positive oldScale is treated as 1.
func ZoomScroll(scroll, anchor, oldScale, newScale float64) float64 {
	if oldScale <= 0 {
		oldScale = 1
	}
	content := (scroll + anchor) / oldScale
	return content*newScale - anchor
}
