package trace

// TimeRange is the closed span of a trace, taken from its first and last
// event timestamps in nanoseconds.
type TimeRange struct {
	Start int64
	End   int64
}

// Duration returns the trace length in nanoseconds.
func (t TimeRange) Duration() int64 {
	return t.End - t.Start
}

// Filter decides whether an event enters the analysis. Filters see the
// whole-trace time range so they can cut relative margins.
type Filter interface {
	Accept(ev *Event, tr TimeRange) bool
}

// initEventNames lists the registration events that describe the object
// graph. Filters always admit them: dropping registrations would orphan
// every runtime table of the entities it refers to.
var initEventNames = map[string]struct{}{
	EventRclInit:                         {},
	EventRclNodeInit:                     {},
	EventRclPublisherInit:                {},
	EventRclSubscriptionInit:             {},
	EventRclcppSubscriptionCallbackAdded: {},
	EventRclTimerInit:                    {},
	EventRclcppTimerCallbackAdded:        {},
	EventRclcppTimerLinkNode:             {},
	EventRclcppCallbackRegister:          {},
}

func isInitEvent(ev *Event) bool {
	_, ok := initEventNames[ev.Name]
	return ok
}

type passFilter struct {
	names map[string]struct{}
}

// PassFilter keeps only events with the given names. Registration events
// always pass.
func PassFilter(names ...string) Filter {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return &passFilter{names: set}
}

func (f *passFilter) Accept(ev *Event, tr TimeRange) bool {
	if isInitEvent(ev) {
		return true
	}
	_, ok := f.names[ev.Name]
	return ok
}

type stripFilter struct {
	leadSeconds  float64
	trailSeconds float64
}

// StripFilter drops events within leadSeconds of the trace start and within
// trailSeconds of the trace end. Zero disables the respective margin.
// Registration events always pass.
func StripFilter(leadSeconds, trailSeconds float64) Filter {
	return &stripFilter{leadSeconds: leadSeconds, trailSeconds: trailSeconds}
}

func (f *stripFilter) Accept(ev *Event, tr TimeRange) bool {
	if isInitEvent(ev) {
		return true
	}
	if f.leadSeconds > 0 {
		diff := float64(ev.Timestamp-tr.Start) * 1e-9
		if diff < f.leadSeconds {
			return false
		}
	}
	if f.trailSeconds > 0 {
		diff := float64(tr.End-ev.Timestamp) * 1e-9
		if diff < f.trailSeconds {
			return false
		}
	}
	return true
}

type durationFilter struct {
	durationSeconds float64
	offsetSeconds   float64
}

// DurationFilter keeps only events inside a window of durationSeconds
// starting offsetSeconds after the trace start. Registration events always
// pass.
func DurationFilter(durationSeconds, offsetSeconds float64) Filter {
	return &durationFilter{durationSeconds: durationSeconds, offsetSeconds: offsetSeconds}
}

func (f *durationFilter) Accept(ev *Event, tr TimeRange) bool {
	if isInitEvent(ev) {
		return true
	}
	elapsed := float64(ev.Timestamp-tr.Start) * 1e-9
	return f.offsetSeconds <= elapsed && elapsed < f.offsetSeconds+f.durationSeconds
}
