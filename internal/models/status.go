package models

// EventStatus represents the lifecycle state of a catalog entry.
type EventStatus string

const (
	EventStatusNew      EventStatus = "new"      // First seen by the pipeline
	EventStatusUpdated  EventStatus = "updated"  // Source content changed, or aged out of new
	EventStatusInactive EventStatus = "inactive" // Past, or no longer listed by its source
	EventStatusImported EventStatus = "imported" // Taken over by an admin; never changed by the pipeline
)

// Valid reports whether s is one of the known statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusNew, EventStatusUpdated, EventStatusInactive, EventStatusImported:
		return true
	}
	return false
}

// IsSticky returns true for statuses automated transitions must not leave.
func (s EventStatus) IsSticky() bool {
	return s == EventStatusImported
}

// Transition names what triggered a status change.
type Transition string

const (
	TransitionContentChanged Transition = "content_changed"
	TransitionPastDate       Transition = "past_date"
	TransitionUnobserved     Transition = "unobserved"
	TransitionAged           Transition = "aged"
	TransitionImport         Transition = "import"
	TransitionReobserved     Transition = "reobserved" // an inactive entry is listed again
)

// Automated reports whether the trigger comes from the pipeline rather than
// an explicit admin action.
func (t Transition) Automated() bool {
	return t != TransitionImport
}

// NextStatus returns the status a record moves to when trigger fires, and
// whether it moves at all.
func NextStatus(current EventStatus, trigger Transition) (EventStatus, bool) {
	if current.IsSticky() && trigger.Automated() {
		return current, false
	}

	switch trigger {
	case TransitionImport:
		return EventStatusImported, current != EventStatusImported
	case TransitionContentChanged:
		return EventStatusUpdated, current != EventStatusUpdated
	case TransitionPastDate, TransitionUnobserved:
		return EventStatusInactive, current != EventStatusInactive
	case TransitionAged:
		if current == EventStatusNew {
			return EventStatusUpdated, true
		}
	case TransitionReobserved:
		if current == EventStatusInactive {
			return EventStatusUpdated, true
		}
	}
	return current, false
}
