// Package handler holds helpers shared by the REST handlers.
package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/rx-scheduler/internal/middleware"
	"github.com/jwalitptl/rx-scheduler/internal/model"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
)

// Clock returns the current time. Handlers derive "today" from it.
type Clock func() time.Time

// Actor returns the authenticated actor or an Unauthorized error.
func Actor(c *gin.Context) (model.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return model.Actor{}, apperrors.Unauthorized(nil)
	}
	return actor, nil
}

// ParamID parses the path parameter name as a uuid.
func ParamID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.Validation(name, "invalid "+name)
	}
	return id, nil
}

// QueryDate parses the query parameter name as a calendar date. A missing
// parameter yields the zero Date.
func QueryDate(c *gin.Context, name string) (model.Date, error) {
	raw := c.Query(name)
	if raw == "" {
		return model.Date{}, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return model.Date{}, apperrors.Validation(name, name+" must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

// QueryID parses an optional uuid query parameter.
func QueryID(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.Validation(name, "invalid "+name)
	}
	return &id, nil
}

// Today is the calendar date of now in the clock's location.
func (clk Clock) Today() model.Date {
	return model.DateOf(clk())
}
