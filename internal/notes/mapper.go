package notes

import "sync"

// Target is either automatic (nearest reference) or a manually chosen string.
type Target struct {
	manual bool
	str    String
}

func Auto() Target { return Target{} }

func Manual(s String) Target { return Target{manual: true, str: s} }

func (t Target) IsManual() bool { return t.manual }

// Selected returns the string of a manual target.
func (t Target) Selected() (String, bool) { return t.str, t.manual }

// Reference chooses what an automatic target snaps to.
type Reference int

const (
	// Guitar snaps to the nearest standard tuning string.
	Guitar Reference = iota
	// Chromatic snaps to the nearest equal-tempered note.
	Chromatic
)

func (r Reference) String() string {
	if r == Chromatic {
		return "chromatic"
	}
	return "guitar"
}

// Reading is a detected frequency placed against its target.
type Reading struct {
	Note       Note    // nearest note to the detected frequency
	Frequency  float64 // detected
	TargetName string
	TargetFreq float64
	Cents      int
	Status     Status
	Manual     bool
}

// Mapper turns detected frequencies into readings and owns the target mode.
type Mapper struct {
	mu        sync.Mutex
	reference Reference
	target    Target
}

func NewMapper(ref Reference) *Mapper {
	return &Mapper{reference: ref}
}

func (m *Mapper) Reference() Reference { return m.reference }

func (m *Mapper) Select(name string) (String, error) {
	s, err := LookupString(name)
	if err != nil {
		return String{}, err
	}
	m.mu.Lock()
	m.target = Manual(s)
	m.mu.Unlock()
	return s, nil
}

func (m *Mapper) Clear() {
	m.mu.Lock()
	m.target = Auto()
	m.mu.Unlock()
}

func (m *Mapper) Target() Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

// Map places f against the current target. A manual selection only holds
// while the selected string is still the nearest one to f; once another
// string is nearer the selection is dropped and the reading falls back to
// the automatic target.
func (m *Mapper) Map(f float64) (Reading, bool) {
	note, ok := FromFrequency(f)
	if !ok {
		return Reading{}, false
	}
	nearest := NearestString(f)

	m.mu.Lock()
	if m.target.manual && m.target.str.Name != nearest.Name {
		m.target = Auto()
	}
	target := m.target
	m.mu.Unlock()

	r := Reading{Note: note, Frequency: f}
	switch {
	case target.manual:
		r.TargetName, r.TargetFreq, r.Manual = target.str.Name, target.str.Frequency, true
	case m.reference == Chromatic:
		r.TargetName, r.TargetFreq = note.String(), note.Frequency()
	default:
		r.TargetName, r.TargetFreq = nearest.Name, nearest.Frequency
	}
	r.Cents = Cents(f, r.TargetFreq)
	r.Status = StatusOf(r.Cents)
	return r, true
}
