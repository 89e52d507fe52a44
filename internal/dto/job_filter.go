package dto

// JobFilter narrows the job history list.
type JobFilter struct {
	Status string
	Limit  int
	Offset int
}
