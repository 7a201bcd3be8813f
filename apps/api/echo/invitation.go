package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulehub/shule/core/invitation"
)

type invitationApi struct {
	svc      *invitation.Service
	validate *validator.Validate
}

func registerInvitationAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := invitationApi{
		svc:      opts.InviteSvc,
		validate: opts.Validate,
	}

	ig := g.Group("/invitations", jwt)
	ig.POST("", api.create, teacherMiddleware())
	ig.GET("", api.queryPending)
	ig.POST("/:id/accept", api.accept, studentMiddleware())
	ig.POST("/:id/reject", api.reject, studentMiddleware())

	// invitations of an owned class
	g.GET("/classes/:id/invitations", api.queryForClass, jwt, teacherMiddleware())
}

// Handlers

func (api *invitationApi) create(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	var data invitation.NewInvitation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInvitation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	inv, err := api.svc.Create(ctx.Request().Context(), prin, data)
	if err != nil {
		return errors.Wrap(err, "creating invitation")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *invitationApi) queryPending(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	invs, err := api.svc.PendingForStudent(ctx.Request().Context(), prin, ctx.QueryParam("student_id"))
	if err != nil {
		return errors.Wrap(err, "querying invitations")
	}
	if invs == nil {
		invs = []invitation.Invitation{}
	}
	return ctx.JSON(http.StatusOK, invs)
}

func (api *invitationApi) queryForClass(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	invs, err := api.svc.ForClass(ctx.Request().Context(), prin, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying class invitations")
	}
	if invs == nil {
		invs = []invitation.Invitation{}
	}
	return ctx.JSON(http.StatusOK, invs)
}

func (api *invitationApi) accept(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	inv, err := api.svc.Accept(ctx.Request().Context(), prin, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "accepting invitation")
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *invitationApi) reject(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	inv, err := api.svc.Reject(ctx.Request().Context(), prin, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "rejecting invitation")
	}
	return ctx.JSON(http.StatusOK, inv)
}
