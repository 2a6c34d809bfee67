package model

// ReferenceKind names one of the lookup tables that technicians pick
// from when filing a task. The value doubles as the URL segment of the
// admin endpoints.
type ReferenceKind string

const (
	KindLocation  ReferenceKind = "locations"
	KindActivity  ReferenceKind = "activities"
	KindCableType ReferenceKind = "cable-types"
	KindStatus    ReferenceKind = "statuses"
	KindProject   ReferenceKind = "projects"
)

// ReferenceKinds lists every kind in display order.
func ReferenceKinds() []ReferenceKind {
	return []ReferenceKind{KindLocation, KindActivity, KindCableType, KindStatus, KindProject}
}

// Valid reports whether k is a known kind.
func (k ReferenceKind) Valid() bool {
	for _, v := range ReferenceKinds() {
		if v == k {
			return true
		}
	}
	return false
}

// Reference is one id/name row of a lookup table. Names are unique
// regardless of case; the check happens on write.
type Reference struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}
