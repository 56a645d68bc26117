package dto

// JobForm carries the multipart fields of every submission route.
// Each route reads only the fields of its operation.
type JobForm struct {
	Operation string `form:"operation"`

	// COMPRESS, quality in percent
	Quality *int `form:"quality" binding:"omitempty,min=0,max=100"`

	// SPLIT
	SplitType     string `form:"split_type"`
	SplitRanges   string `form:"split_ranges"`
	SplitInterval int    `form:"split_interval" binding:"omitempty,min=1"`

	// PROTECT
	Action            string `form:"action"`
	UserPassword      string `form:"user_password"`
	OwnerPassword     string `form:"owner_password"`
	Password          string `form:"password"`
	AllowPrinting     *bool  `form:"allow_printing"`
	AllowCopying      *bool  `form:"allow_copying"`
	AllowModification *bool  `form:"allow_modification"`
	AllowAssembly     *bool  `form:"allow_assembly"`
}

type ListJobsRequest struct {
	Operation string `form:"operation"`
	Status    string `form:"status"`
	PageSize  int    `form:"page_size"`
	Cursor    string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID        string         `json:"job_id"`
	Operation    string         `json:"operation"`
	Status       string         `json:"status"`
	InputFiles   int            `json:"input_files"`
	RetryCount   int            `json:"retry_count"`
	MaxRetries   int            `json:"max_retries"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
	DownloadURL  string         `json:"download_url,omitempty"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

type JobStatusResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

type EstimateSizeRequest struct {
	OriginalSize int64 `form:"original_size" binding:"required,gt=0"`
	Quality      *int  `form:"quality" binding:"omitempty,min=0,max=100"`
}

type EstimateSizeResponse struct {
	OriginalSize     int64   `json:"original_size"`
	Quality          int     `json:"quality"`
	EstimatedSize    int64   `json:"estimated_size"`
	ReductionPercent float64 `json:"reduction_percent"`
}
