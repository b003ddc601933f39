package service

import "github.com/repairdesk/repair-service/internal/repository"

// PageRequest is a 1-based page request as received from clients.
type PageRequest struct {
	Page     int
	PageSize int
}

// PageInfo describes the page that was served.
type PageInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// normalize clamps the request: page below 1 becomes 1 and size falls back to
// def when unset, capped at max.
func (p PageRequest) normalize(def, max int) PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = def
	}
	if p.PageSize > max {
		p.PageSize = max
	}
	return p
}

func (p PageRequest) repoPage() repository.Page {
	return repository.Page{Limit: p.PageSize, Offset: (p.Page - 1) * p.PageSize}
}

func (p PageRequest) info(total int) PageInfo {
	pages := 0
	if p.PageSize > 0 {
		pages = (total + p.PageSize - 1) / p.PageSize
	}
	return PageInfo{Page: p.Page, PageSize: p.PageSize, TotalCount: total, TotalPages: pages}
}
