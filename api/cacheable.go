package api

import "time"

// Cacheable is implemented by values that know when they last changed.
type Cacheable interface {
	GetLastModified() time.Time
}
