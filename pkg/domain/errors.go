package domain

import "errors"

// ErrIncompletePlan is returned when an action plan is missing a required field.
var ErrIncompletePlan = errors.New("incomplete action plan")

// ErrPlanNotFound is returned when a stored plan ID cannot be found in the store.
var ErrPlanNotFound = errors.New("action plan not found")
