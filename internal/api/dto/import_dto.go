package dto

// SubmitImportRequest is the payload for POST /api/v1/imports
type SubmitImportRequest struct {
	URL            string `json:"url" binding:"required"`
	UserID         string `json:"user_id" binding:"required"`
	CollectionID   string `json:"collection_id"`
	CollectionName string `json:"collection_name"`
}

// ImportJobDTO is the wire shape of a job record
type ImportJobDTO struct {
	JobID          string  `json:"job_id"`
	URL            string  `json:"url"`
	UserID         string  `json:"user_id"`
	CollectionID   string  `json:"collection_id,omitempty"`
	CollectionName string  `json:"collection_name,omitempty"`
	Status         string  `json:"status"`
	Progress       float64 `json:"progress"`
	Message        string  `json:"message,omitempty"`
	Tier           string  `json:"tier,omitempty"`
	ResultID       string  `json:"result_id,omitempty"`
	ResultTitle    string  `json:"result_title,omitempty"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// ListImportsResponse wraps the job list
type ListImportsResponse struct {
	Imports []ImportJobDTO `json:"imports"`
}
