package models

// GenerationStatus is the closed lifecycle of a generation job.
// A job is created queued, moves to processing once the provider accepts
// it, and ends in completed or failed. Terminal states absorb any further
// provider callbacks.
type GenerationStatus string

const (
	GenerationQueued     GenerationStatus = "queued"
	GenerationProcessing GenerationStatus = "processing"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationFailed     GenerationStatus = "failed"
)

var generationTransitions = map[GenerationStatus][]GenerationStatus{
	GenerationQueued:     {GenerationProcessing, GenerationFailed},
	GenerationProcessing: {GenerationCompleted, GenerationFailed},
	GenerationCompleted:  {},
	GenerationFailed:     {},
}

func (s GenerationStatus) Valid() bool {
	_, ok := generationTransitions[s]
	return ok
}

func (s GenerationStatus) Terminal() bool {
	return s == GenerationCompleted || s == GenerationFailed
}

func (s GenerationStatus) CanTransitionTo(target GenerationStatus) bool {
	for _, next := range generationTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// PaymentStatus is the closed lifecycle of a payment. Crediting the user
// balance happens exactly once, on the pending -> succeeded transition.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentSucceeded, PaymentFailed, PaymentCancelled},
	PaymentSucceeded: {},
	PaymentFailed:    {},
	PaymentCancelled: {},
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

func (s PaymentStatus) Terminal() bool {
	return s == PaymentSucceeded || s == PaymentFailed || s == PaymentCancelled
}

func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}
