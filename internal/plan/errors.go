package plan

import "errors"

var (
	// ErrPlanNotFound indicates the named plan is not in the store.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrKeyNotFound indicates a constant key is not present in the plan.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStoreUnavailable indicates the backing file exists but could not
	// be read or did not contain a valid plan catalog.
	ErrStoreUnavailable = errors.New("plan store unavailable")
)
