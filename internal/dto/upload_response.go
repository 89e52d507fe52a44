package dto

// UploadResponse is returned once a job has been accepted.
type UploadResponse struct {
	Status    string `json:"status"`
	Output    string `json:"output"`
	JobID     string `json:"job_id"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorResponse carries a client-facing error message.
type ErrorResponse struct {
	Error string `json:"error"`
}
