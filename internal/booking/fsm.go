package booking

// Step is a wizard state.
type Step string

const (
	StepSpecialty   Step = "specialty"
	StepDoctor      Step = "doctor"
	StepAppointment Step = "appointment"
	StepContact     Step = "contact"
	StepConfirm     Step = "confirm"
	StepDone        Step = "done"
)

var stepOrder = []Step{StepSpecialty, StepDoctor, StepAppointment, StepContact, StepConfirm, StepDone}

// Index returns the position of s in the flow, or -1 if unknown.
func (s Step) Index() int {
	for i, v := range stepOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// AtLeast reports whether s is other or a later step.
func (s Step) AtLeast(other Step) bool {
	return s.Index() >= other.Index()
}

// FSM holds the allowed wizard transitions. confirm -> done is only taken by a
// successful submission; done leaves only through a reset to specialty.
type FSM struct {
	transitions map[Step][]Step
}

// NewFSM creates the wizard state machine.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[Step][]Step{
			StepSpecialty:   {StepDoctor},
			StepDoctor:      {StepAppointment, StepSpecialty},
			StepAppointment: {StepContact, StepDoctor},
			StepContact:     {StepConfirm, StepAppointment},
			StepConfirm:     {StepDone, StepContact},
			StepDone:        {StepSpecialty},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to Step) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Next returns the forward neighbour of s, skipping done which requires a submission.
func (f *FSM) Next(s Step) (Step, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(stepOrder) || stepOrder[i+1] == StepDone {
		return s, false
	}
	to := stepOrder[i+1]
	return to, f.CanTransition(s, to)
}

// Previous returns the backward neighbour of s.
func (f *FSM) Previous(s Step) (Step, bool) {
	i := s.Index()
	if i <= 0 || s == StepDone {
		return s, false
	}
	to := stepOrder[i-1]
	return to, f.CanTransition(s, to)
}
