package domain

// FileCategory classifies an uploaded medical document. The set is closed;
// each category has its own accepted extensions and size cap.
type FileCategory string

const (
	CategoryGeneral       FileCategory = "general"
	CategoryLabResults    FileCategory = "lab-results"
	CategoryImaging       FileCategory = "imaging"
	CategoryPrescriptions FileCategory = "prescriptions"
	CategoryClinicalNotes FileCategory = "clinical-notes"
)

// CategoryRule holds the per-category upload constraints.
type CategoryRule struct {
	MaxSize    int64
	Extensions []string
}

const mib = 1 << 20

var categoryRules = map[FileCategory]CategoryRule{
	CategoryGeneral: {
		MaxSize:    10 * mib,
		Extensions: []string{".pdf", ".jpg", ".jpeg", ".png", ".txt", ".doc", ".docx"},
	},
	CategoryLabResults: {
		MaxSize:    25 * mib,
		Extensions: []string{".pdf", ".jpg", ".jpeg", ".png", ".csv"},
	},
	CategoryImaging: {
		MaxSize:    50 * mib,
		Extensions: []string{".jpg", ".jpeg", ".png", ".dcm", ".tif", ".tiff"},
	},
	CategoryPrescriptions: {
		MaxSize:    10 * mib,
		Extensions: []string{".pdf", ".jpg", ".jpeg", ".png"},
	},
	CategoryClinicalNotes: {
		MaxSize:    5 * mib,
		Extensions: []string{".pdf", ".txt", ".doc", ".docx"},
	},
}

// CategoryRuleFor returns the upload rule for a category. The second return
// is false for categories outside the closed set.
func CategoryRuleFor(category FileCategory) (CategoryRule, bool) {
	rule, ok := categoryRules[category]
	return rule, ok
}

// FileCategories lists the closed category set.
func FileCategories() []FileCategory {
	return []FileCategory{
		CategoryGeneral,
		CategoryLabResults,
		CategoryImaging,
		CategoryPrescriptions,
		CategoryClinicalNotes,
	}
}

// UploadedFile is the normalized metadata of a file processed by the server.
// Before a message is sent it lives in the compose-time pending list; once
// sent it belongs to the message it is attached to.
type UploadedFile struct {
	FileID   string       `json:"file_id"`
	Filename string       `json:"filename"`
	URL      string       `json:"url"`
	FileType string       `json:"file_type"`
	FileSize int64        `json:"file_size"`
	Category FileCategory `json:"category"`
}

// BatchStatus is the server-reported state of a batch upload job.
type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchPartial    BatchStatus = "partial"
	BatchFailed     BatchStatus = "failed"
)

// Terminal reports whether the status ends polling.
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchPartial || s == BatchFailed
}

// BatchUploadJob is a server-tracked unit of work covering the upload and
// processing of multiple files submitted together. Transient; never
// persisted across restarts.
type BatchUploadJob struct {
	BatchID  string      `json:"batch_id"`
	Status   BatchStatus `json:"status"`
	Progress int         `json:"progress_percentage"`
}
