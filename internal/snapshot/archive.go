package snapshot

// Archive is the resolved and classified view of one snapshot archive.
type Archive struct {
	Name string
	*Coordinates
	Tasks []Task
}

// Scan resolves the coordinates and classifies every task. It reads the axis
// and time datasets but no field data.
func Scan(h Handle) (*Archive, error) {
	c, err := LoadCoordinates(h)
	if err != nil {
		return nil, err
	}
	tasks, err := ScanTasks(h, c)
	if err != nil {
		return nil, err
	}
	return &Archive{Name: h.Name(), Coordinates: c, Tasks: tasks}, nil
}

// Stem returns the archive file name without directory or extension.
func (a *Archive) Stem() string { return Stem(a.Name) }
