package model

type RunJob struct {
	RunID    string `json:"run_id"`
	S3Path   string `json:"s3_path"`
	FileName string `json:"file_name"`
	NextDay  bool   `json:"next_day"`
}

type UploadResponse struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	NextDay bool   `json:"next_day"`
}
