package fidelity

// Options selects which physical properties the inputs are expected to have.
// A failed requirement never aborts a calculation; it is logged and returned
// as a Diagnostic alongside the value.
type Options struct {
	RequireCP bool `json:"require_cp" msgpack:"require_cp"`
	RequireTP bool `json:"require_tp" msgpack:"require_tp"`
}

// ProcessOptions are the defaults for ProcessFidelity.
func ProcessOptions() Options {
	return Options{RequireCP: true, RequireTP: true}
}

// GateOptions are the defaults for AverageGateFidelity and GateError.
func GateOptions() Options {
	return Options{RequireCP: true, RequireTP: false}
}

// Violation kinds reported in diagnostics.
const (
	KindCP = "cp"
	KindTP = "tp"
)

// Subjects of a diagnostic.
const (
	SubjectChannel = "channel"
	SubjectTarget  = "target"
)

// Diagnostic describes one required property that an input failed.
type Diagnostic struct {
	Component string  `json:"component" msgpack:"component"`
	Subject   string  `json:"subject" msgpack:"subject"`
	Kind      string  `json:"violation_kind" msgpack:"violation_kind"`
	Magnitude float64 `json:"magnitude" msgpack:"magnitude"`
}

// Result is a measure value together with the diagnostics raised while
// computing it.
type Result struct {
	Value       float64      `json:"value" msgpack:"value"`
	Diagnostics []Diagnostic `json:"diagnostics" msgpack:"diagnostics"`
}

// Valid reports whether no diagnostics were raised.
func (r Result) Valid() bool { return len(r.Diagnostics) == 0 }
