package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
)

// Pagination bounds for list endpoints.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

var errInvalidPagination = errors.New("page and limit must be positive integers, limit at most 200")

// PaginationParams holds parsed pagination values from query params.
type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

// PaginatedResponse wraps any list data with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// PaginationMeta contains pagination metadata for the response.
type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// ParsePagination extracts page and limit from query params. Missing values
// take the defaults; malformed or out-of-range values are an error.
func ParsePagination(r *http.Request) (PaginationParams, error) {
	page, err := positiveParam(r, "page", 1)
	if err != nil {
		return PaginationParams{}, err
	}
	limit, err := positiveParam(r, "limit", DefaultPageLimit)
	if err != nil {
		return PaginationParams{}, err
	}
	if limit > MaxPageLimit {
		return PaginationParams{}, errInvalidPagination
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}, nil
}

func positiveParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidPagination
	}
	return n, nil
}

// NewPaginatedResponse builds a PaginatedResponse from data, params, and total count.
func NewPaginatedResponse(data interface{}, params PaginationParams, total int) PaginatedResponse {
	totalPages := int(math.Ceil(float64(total) / float64(params.Limit)))
	if totalPages < 1 {
		totalPages = 1
	}

	return PaginatedResponse{
		Data: data,
		Pagination: PaginationMeta{
			Page:       params.Page,
			Limit:      params.Limit,
			Total:      int64(total),
			TotalPages: totalPages,
			HasMore:    params.Page < totalPages,
		},
	}
}
