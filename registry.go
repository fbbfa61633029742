package vfsglue

import "sync"

// instanceEntry is one {service_id, data} pair in the registry.
type instanceEntry struct {
	serviceID ServiceID
	data      interface{}
}

// Registry is the process-wide, mutex-protected mapping from service
// identifier to opaque per-mount backend state. Entries are kept in
// ascending ServiceID order, found by binary search on insertion.
//
// A Registry's zero value is ready to use.
type Registry struct {
	mu      sync.Mutex
	entries []instanceEntry
}

// Create registers data under serviceID. Returns EAlreadyExist if the
// service ID is already present.
func (r *Registry) Create(serviceID ServiceID, data interface{}) Errno {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.search(serviceID)
	if i < len(r.entries) && r.entries[i].serviceID == serviceID {
		return EAlreadyExist
	}

	r.entries = append(r.entries, instanceEntry{})
	copy(r.entries[i+1:], r.entries[i:])
	r.entries[i] = instanceEntry{serviceID: serviceID, data: data}
	return EOK
}

// Get returns the data registered under serviceID, or ENoEntry if there is
// none.
func (r *Registry) Get(serviceID ServiceID) (interface{}, Errno) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.search(serviceID)
	if i < len(r.entries) && r.entries[i].serviceID == serviceID {
		return r.entries[i].data, EOK
	}
	return nil, ENoEntry
}

// Destroy removes the entry registered under serviceID, or returns
// ENoEntry if there is none.
func (r *Registry) Destroy(serviceID ServiceID) Errno {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.search(serviceID)
	if i < len(r.entries) && r.entries[i].serviceID == serviceID {
		r.entries = append(r.entries[:i], r.entries[i+1:]...)
		return EOK
	}
	return ENoEntry
}

// search returns the index of serviceID in the sorted entries slice, or
// the index at which it would be inserted to keep the slice sorted.
// GUARDED_BY(r.mu)
func (r *Registry) search(serviceID ServiceID) int {
	lo, hi := 0, len(r.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if r.entries[mid].serviceID < serviceID {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
