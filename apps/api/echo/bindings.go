package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const limitParam = "limit"

// Limit is the optional `limit` query parameter. Missing, malformed and non-positive values leave it at 0 (default).
type Limit struct {
	Value int
}

func (l *Limit) Bind(ctx echo.Context) {
	val := ctx.QueryParam(limitParam)
	if val == "" {
		return
	}
	if n, err := strconv.Atoi(val); err == nil && n > 0 {
		l.Value = n
	}
}
