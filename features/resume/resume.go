package resume

import (
	"errors"
	"time"
)

var ErrDuplicate = errors.New("resume already uploaded")

// Upload records one uploaded resume file and where its chunks went.
type Upload struct {
	ID          string    `json:"id"`
	UID         string    `json:"uid"`
	Collection  string    `json:"collection"`
	Filename    string    `json:"filename"`
	Path        string    `json:"path"`
	ContentHash string    `json:"content_hash"`
	Name        string    `json:"name"`
	NameNorm    string    `json:"name_norm"`
	CandidateID string    `json:"candidate_id"`
	Chunks      int       `json:"chunks"`
	CreatedAt   time.Time `json:"created_at"`
}
