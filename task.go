package twheel

type (
	// Task is anything the wheel can track: a deadline plus a slot the wheel
	// uses to remember where the task is queued.
	//
	// TimerEntry must return whatever was last passed to SetTimerEntry.
	// User code never calls SetTimerEntry; the wheel sets it on insertion and
	// resets it to nil when the task leaves the wheel.
	Task interface {
		// Expiration is the deadline in the same unit as the wheel clock (milliseconds).
		Expiration() int64
		TimerEntry() *Entry
		SetTimerEntry(entry *Entry)
	}

	// Entry is the wheel's private wrapper around a queued task.
	// It is opaque to callers; a non-nil entry means the task is queued.
	Entry struct {
		// owning bucket, nil once the entry is unlinked
		list *bucket
		prev *Entry
		next *Entry
		task Task
		// task expiration cached at insertion time
		expiration int64
	}

	// EntrySlot implements the back-reference half of Task.
	// Embed it in a struct and add an Expiration method to get a Task.
	EntrySlot struct {
		entry *Entry
	}

	// BasicTask is a ready-made Task carrying an arbitrary payload.
	BasicTask struct {
		EntrySlot
		payload    any
		expiration int64
	}
)

// TimerEntry returns the current back-reference.
func (s *EntrySlot) TimerEntry() *Entry {
	return s.entry
}

// SetTimerEntry replaces the back-reference.
func (s *EntrySlot) SetTimerEntry(entry *Entry) {
	s.entry = entry
}

// Queued reports whether the task currently sits in a bucket.
func (s *EntrySlot) Queued() bool {
	return s.entry != nil && s.entry.list != nil
}

// NewTask creates a BasicTask expiring at the given time.
func NewTask(expiration int64, payload any) *BasicTask {
	return &BasicTask{expiration: expiration, payload: payload}
}

// Expiration implements Task.
func (t *BasicTask) Expiration() int64 {
	return t.expiration
}

// Payload returns the value given to NewTask.
func (t *BasicTask) Payload() any {
	return t.payload
}

// Handler receives tasks whose deadline has been reached.
type Handler interface {
	Handle(task Task)
}

// HandlerFunc is a function type that implements the Handler interface.
type HandlerFunc func(task Task)

// Handle calls f(task).
func (f HandlerFunc) Handle(task Task) {
	f(task)
}
