package api

import "fmt"

// LikeResponse is returned by both like endpoints.
type LikeResponse struct {
	Success bool   `json:"success"`
	Rating  *int   `json:"rating,omitempty"`
	Error   string `json:"error,omitempty"`
}

type MarkCorrectResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type SearchOrderResponse struct {
	Order []int `json:"order"`
}

// APIError is an application error reported in a JSON body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}
