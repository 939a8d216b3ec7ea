package models

import "time"

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

const (
	StatusPending = "pending"
	StatusSyncing = "syncing"
	StatusFailed  = "failed"

	// StatusResolved marks a synthetic queue item that required no remote
	// action (a create cancelled by a delete). Never persisted.
	StatusResolved = "resolved"
)

const (
	CollectionTasks      = "tasks"
	CollectionEvents     = "events"
	CollectionNotes      = "notes"
	CollectionCategories = "categories"
	CollectionReminders  = "reminders"
)

const (
	// DefaultMaxRetries attempts before an item is excluded from draining
	DefaultMaxRetries = 3

	// DefaultInitialDelay base backoff before the first retry attempt
	DefaultInitialDelay = time.Second

	// DefaultMaxDelay backoff cap
	DefaultMaxDelay = 30 * time.Second

	// DefaultProbeTimeout upper bound on the active connectivity probe
	DefaultProbeTimeout = 5 * time.Second

	// DefaultDrainInterval background timer between drain checks
	DefaultDrainInterval = 30 * time.Second

	// DefaultDeadLetterKey redis list for retry-exhausted items
	DefaultDeadLetterKey = "planik:deadletter"
)

// Collections lists every entity collection mirrored from the remote store.
var Collections = []string{
	CollectionTasks,
	CollectionEvents,
	CollectionNotes,
	CollectionCategories,
	CollectionReminders,
}

// dateFields maps each collection to the payload field used for range queries.
var dateFields = map[string]string{
	CollectionTasks:      "dueDate",
	CollectionEvents:     "startDate",
	CollectionNotes:      "createdAt",
	CollectionCategories: "createdAt",
	CollectionReminders:  "remindAt",
}

// ValidCollection reports whether name is a known entity collection.
func ValidCollection(name string) bool {
	_, ok := dateFields[name]
	return ok
}

// DateField returns the designated date field name for a collection.
func DateField(collection string) string {
	return dateFields[collection]
}

// ValidOperation reports whether op is one of create/update/delete.
func ValidOperation(op string) bool {
	return op == OpCreate || op == OpUpdate || op == OpDelete
}
