package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pkl/core"
	"github.com/trezcool/pkl/core/attendance"
	"github.com/trezcool/pkl/core/clock"
)

type sweepApi struct {
	sweeper *attendance.Sweeper
}

func registerSweepAPI(g *echo.Group, jwt echo.MiddlewareFunc, conf *core.Config, sweeper *attendance.Sweeper) {
	api := sweepApi{sweeper: sweeper}

	g.POST("/sweep", api.sweep, sweepAuthMiddleware(conf.Sweep.TriggerKey, jwt))
}

func (api *sweepApi) sweep(ctx echo.Context) error {
	var data SweepRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SweepRequest")
	}

	res, err := api.sweeper.Run(ctx.Request().Context(), data.Date)
	if err != nil {
		if errors.Cause(err) == attendance.ErrPrematureSweep {
			return ctx.JSON(http.StatusOK, MessageResponse{Message: attendance.ErrPrematureSweep.Error()})
		}
		return errors.Wrap(err, "sweeping attendance")
	}

	return ctx.JSON(http.StatusOK, SweepResponse{
		Date:      res.Date,
		Processed: res.Processed,
		Skipped:   res.Skipped,
		Failed:    res.Failed(),
		Failures:  res.Failures,
	})
}

type (
	SweepRequest struct {
		Date clock.Date `json:"date"` // defaults to today
	}

	SweepResponse struct {
		Date      clock.Date                `json:"date"`
		Processed int                       `json:"processed"`
		Skipped   int                       `json:"skipped"`
		Failed    int                       `json:"failed"`
		Failures  []attendance.SweepFailure `json:"failures,omitempty"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)
