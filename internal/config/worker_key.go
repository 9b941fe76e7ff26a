package config

type WorkerKeyStruct struct {
	PersistProctoringEventsQueue string
	// ContentUpdatedChannel carries a ContentUpdate whenever a test form is
	// rewritten, so every server drops its cached copy.
	ContentUpdatedChannel string
}

var WorkerKey = &WorkerKeyStruct{
	PersistProctoringEventsQueue: "persist_proctoring_events_queue",
	ContentUpdatedChannel:        "content_updated",
}
