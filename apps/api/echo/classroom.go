package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/classroom"
)

type classroomApi struct {
	svc      *classroom.Service
	validate *validator.Validate
}

func registerClassroomAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := classroomApi{
		svc:      opts.ClassSvc,
		validate: opts.Validate,
	}

	cg := g.Group("/classes", jwt)
	cg.POST("", api.create, teacherMiddleware())
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update, teacherMiddleware())
	cg.DELETE("/:id", api.destroy, teacherMiddleware())

	// membership
	cg.POST("/:id/students", api.addStudents, teacherMiddleware())
	cg.DELETE("/:id/students", api.removeStudents, teacherMiddleware())
	cg.GET("/:id/members", api.members)

	// subjects
	cg.GET("/:id/subjects", api.querySubjects)
	cg.POST("/:id/subjects", api.createSubject, teacherMiddleware())

	sg := g.Group("/subjects", jwt)
	sg.GET("/:id", api.retrieveSubject)
	sg.PUT("/:id", api.updateSubject, teacherMiddleware())
	sg.DELETE("/:id", api.destroySubject, teacherMiddleware())

	g.GET("/students/available", api.availableStudents, jwt, roleMiddleware(core.RoleTeacher, core.RoleAdmin, core.RoleSuperAdmin))
}

// Handlers

func (api *classroomApi) create(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	var data classroom.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.Create(ctx.Request().Context(), prin, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classroomApi) query(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	classes, err := api.svc.Query(ctx.Request().Context(), prin, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []classroom.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classroomApi) retrieve(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	cls, err := api.svc.GetByID(ctx.Request().Context(), prin, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classroomApi) update(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	cls, err := api.svc.OwnedClass(ctx.Request().Context(), prin, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}

	var data classroom.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := data.Validate(cls, api.validate); err != nil {
		return err
	}

	cls, err = api.svc.Update(ctx.Request().Context(), prin, cls.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classroomApi) destroy(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.Delete(ctx.Request().Context(), prin, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classroomApi) addStudents(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	var data StudentIDsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentIDsRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.AddStudents(ctx.Request().Context(), prin, ctx.Param("id"), data.StudentIDs)
	if err != nil {
		return errors.Wrap(err, "adding students")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *classroomApi) removeStudents(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	var data StudentIDsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentIDsRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.RemoveStudents(ctx.Request().Context(), prin, ctx.Param("id"), data.StudentIDs)
	if err != nil {
		return errors.Wrap(err, "removing students")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *classroomApi) members(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	members, err := api.svc.Members(ctx.Request().Context(), prin, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying class members")
	}
	if members == nil {
		members = []classroom.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *classroomApi) availableStudents(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	schoolID := ctx.QueryParam("school_id")
	if schoolID == "" {
		schoolID = prin.SchoolID
	}

	members, err := api.svc.AvailableStudents(ctx.Request().Context(), prin, schoolID, ctx.QueryParam("class_id"), ctx.QueryParam("search"))
	if err != nil {
		return errors.Wrap(err, "querying available students")
	}
	if members == nil {
		members = []classroom.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *classroomApi) createSubject(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	var data classroom.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.CreateSubject(ctx.Request().Context(), prin, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *classroomApi) querySubjects(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	subjects, err := api.svc.Subjects(ctx.Request().Context(), prin, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []classroom.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *classroomApi) retrieveSubject(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	sub, err := api.svc.GetSubject(ctx.Request().Context(), prin, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding subject")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *classroomApi) updateSubject(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	sub, err := api.svc.GetSubject(ctx.Request().Context(), prin, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding subject")
	}

	var data classroom.UpdateSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubject")
	}
	if err := data.Validate(sub, api.validate); err != nil {
		return err
	}

	sub, err = api.svc.UpdateSubject(ctx.Request().Context(), prin, sub.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *classroomApi) destroySubject(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.DeleteSubject(ctx.Request().Context(), prin, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type StudentIDsRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1"`
}

func (sr *StudentIDsRequest) Validate(validate *validator.Validate) error {
	cleaned := make([]string, 0, len(sr.StudentIDs))
	for _, id := range sr.StudentIDs {
		if id = core.CleanString(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	sr.StudentIDs = cleaned
	return validate.Struct(sr)
}
