package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pkl/core/attendance"
	"github.com/trezcool/pkl/core/clock"
	"github.com/trezcool/pkl/core/user"
)

type attendanceApi struct {
	clock   clock.Clock
	userSvc *user.Service
	svc     *attendance.Service
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	clk clock.Clock,
	userSvc *user.Service,
	svc *attendance.Service,
) {
	api := attendanceApi{
		clock:   clk,
		userSvc: userSvc,
		svc:     svc,
	}

	g.GET("/clock", api.now)

	ag := g.Group("/attendance", jwt)
	ag.GET("", api.query)
	ag.GET("/today", api.today, studentMiddleware)
	ag.POST("/check-in", api.checkIn, studentMiddleware)
	ag.GET("/:id", api.retrieve)
	ag.DELETE("/:id", api.destroy, adminMiddleware())
}

// Handlers

func (api *attendanceApi) now(ctx echo.Context) error {
	now := api.clock.Now()
	return ctx.JSON(http.StatusOK, ClockResponse{
		Now:      now,
		Date:     clock.DateOf(now),
		Time:     clock.TimeOf(now),
		Timezone: clock.WIB.String(),
		Phase:    attendance.Classify(now),
		Window:   attendance.WindowAt(now),
	})
}

func (api *attendanceApi) today(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	status, err := api.svc.Today(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting today's status")
	}
	return ctx.JSON(http.StatusOK, status)
}

func (api *attendanceApi) checkIn(ctx echo.Context) error {
	var data attendance.NewCheckIn
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCheckIn")
	}

	student, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !student.IsActive {
		return errAccountDeactivated
	}

	rec, err := api.svc.CheckIn(ctx.Request().Context(), student, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	filter := new(attendance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	records, err := api.svc.Query(ctx.Request().Context(), ctxUsr, filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance records")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rec, err := api.svc.GetByID(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if _, err := api.svc.GetByID(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type ClockResponse struct {
	Now      time.Time         `json:"now"`
	Date     clock.Date        `json:"date"`
	Time     clock.TimeOfDay   `json:"time"`
	Timezone string            `json:"timezone"`
	Phase    attendance.Phase  `json:"phase"`
	Window   attendance.Window `json:"window"`
}
