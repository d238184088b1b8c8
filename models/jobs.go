package models

// JobStatus is the raw status string returned by the status query.
type JobStatus string

const (
	JobPending       JobStatus = "PENDING"
	JobPreprocessing JobStatus = "PREPROCESSING"
	JobExtracting    JobStatus = "EXTRACTING"
	JobTranslating   JobStatus = "TRANSLATING"
	JobProcessing    JobStatus = "PROCESSING"
	JobCompleted     JobStatus = "COMPLETED"
	JobFailed        JobStatus = "FAILED"
)

// Terminal reports whether no further status transitions can happen.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobStatusReport is one status query response.
type JobStatusReport struct {
	Status       JobStatus `json:"status"`
	Progress     *int      `json:"progress,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// IngestionJob is a server-side job as listed alongside a collection.
type IngestionJob struct {
	ID           ID        `json:"id"`
	Title        string    `json:"title"`
	Status       JobStatus `json:"status"`
	Progress     *int      `json:"progress,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// JobHandle is returned when the backend accepts a submission.
type JobHandle struct {
	JobID      ID     `json:"task_id"`
	DocumentID ID     `json:"document_id,omitempty"`
	FileName   string `json:"file_name,omitempty"`
}

// Submission is a file offered for ingestion.
type Submission struct {
	FileName     string `json:"file_name" validate:"required"`
	Title        string `json:"title" validate:"required,max=255"`
	CollectionID string `json:"collection_id,omitempty" validate:"omitempty,max=64"`
	ContentType  string `json:"content_type,omitempty"`
	Data         []byte `json:"-" validate:"required,min=1"`
}

type EventKind int

const (
	EventProgress EventKind = iota
	EventCompleted
	EventFailed
	// EventAbandoned ends a watch after the configured transient-failure cap.
	EventAbandoned
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// LifecycleEvent is what a job watch yields.
type LifecycleEvent struct {
	JobID   string    `json:"job_id"`
	Kind    EventKind `json:"kind"`
	Percent int       `json:"percent,omitempty"`
	Stage   JobStatus `json:"stage,omitempty"`
	Message string    `json:"message,omitempty"`
}

func (e LifecycleEvent) Terminal() bool {
	return e.Kind != EventProgress
}

// UploadStage is the coordinator's per-file state.
type UploadStage string

const (
	StageUploading    UploadStage = "uploading"
	StageProcessing   UploadStage = "processing"
	StageCompleted    UploadStage = "completed"
	StageFailed       UploadStage = "failed"
	StageUploadFailed UploadStage = "upload-failed"
)

type FileProgress struct {
	FileName string      `json:"file_name"`
	JobID    string      `json:"job_id,omitempty"`
	Stage    UploadStage `json:"stage"`
	Percent  int         `json:"percent"`
	Message  string      `json:"message,omitempty"`
}

type NotificationKind string

const (
	NotifySuccess          NotificationKind = "success"
	NotifyProcessingFailed NotificationKind = "processing-failed"
	NotifyUploadFailed     NotificationKind = "upload-failed"
)

// Notification is a dismissable user-visible message.
type Notification struct {
	Kind     NotificationKind `json:"kind"`
	FileName string           `json:"file_name"`
	JobID    string           `json:"job_id,omitempty"`
	Text     string           `json:"text"`
}
