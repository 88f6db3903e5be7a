package pagination

import (
	"strconv"

	"taxnexus/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds validated pagination parameters
type Params struct {
	Page  int
	Limit int
}

// Parse reads page and limit from the query string. Missing or malformed
// values fall back to the defaults; limit is capped at MaxLimit.
func Parse(c *gin.Context) Params {
	p := Params{
		Page:  queryInt(c, "page", DefaultPage),
		Limit: queryInt(c, "limit", DefaultLimit),
	}
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset is the number of rows before the requested page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Wrap builds the response payload for one page of items.
func (p Params) Wrap(items interface{}, total int64) response.Page {
	return response.Page{Items: items, Total: total, Page: p.Page, Limit: p.Limit}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}
