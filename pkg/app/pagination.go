package app

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Pager struct {
	Page      int `json:"page"`      // page number
	PageSize  int `json:"pageSize"`  // rows per page
	TotalRows int `json:"totalRows"` // total row count
}

// NewPager reads page/pageSize from the query string, clamping to sane
// bounds. totalRows, when given, is echoed back in the pager.
func NewPager(c *gin.Context, totalRows ...int) *Pager {
	p := &Pager{
		Page:     GetPage(c),
		PageSize: GetPageSize(c),
	}
	if len(totalRows) > 0 {
		p.TotalRows = totalRows[0]
	}
	return p
}

func GetPage(c *gin.Context) int {
	page, _ := strconv.Atoi(c.Query("page"))
	if page <= 0 {
		return 1
	}
	return page
}

func GetPageSize(c *gin.Context) int {
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		return DefaultPageSize
	}
	if pageSize > MaxPageSize {
		return MaxPageSize
	}
	return pageSize
}

// Offset converts the pager to a SQL offset.
func (p *Pager) Offset() int {
	return (p.Page - 1) * p.PageSize
}
