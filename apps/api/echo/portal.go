package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/portal"
)

type portalApi struct{}

func registerPortalAPI(g *echo.Group, tab echo.MiddlewareFunc) {
	api := portalApi{}

	pg := g.Group("", tab)

	// un-authed endpoints
	pg.POST("/login", api.login)
	pg.POST("/signup", api.signup)
	pg.POST("/logout", api.logout)
	pg.GET("/session", api.currentSession)
	pg.GET("/notices", api.notices)

	// authed endpoints (roles are checked by the portal)
	pg.GET("/students", api.queryRoster)
	pg.PUT("/students/:id", api.addOrUpdateStudent)
	pg.DELETE("/students/:id", api.deleteStudent)
	pg.GET("/me", api.ownRecord)
	pg.GET("/teachers", api.queryTeachers)
}

// Handlers

func (api *portalApi) login(ctx echo.Context) error {
	tab, err := getContextTab(ctx)
	if err != nil {
		return err
	}
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}

	role, err := portal.ParseRole(data.Role)
	if err != nil {
		role = portal.Role(data.Role) // reported by Login
	}
	sess, err := tab.Login(role, portal.Credentials{
		Username: data.Username,
		ID:       data.ID,
		Password: data.Password,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *portalApi) signup(ctx echo.Context) error {
	tab, err := getContextTab(ctx)
	if err != nil {
		return err
	}
	var data SignupRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignupRequest")
	}

	role, err := portal.ParseRole(data.Role)
	if err != nil {
		role = portal.Role(data.Role)
	}
	err = tab.Signup(ctx.Request().Context(), role, portal.SignupForm{
		Username: data.Username,
		ID:       data.ID,
		Name:     data.Name,
		Password: data.Password,
	})
	if err != nil {
		return err
	}

	msg := "Teacher account created! Please log in."
	if role == portal.RoleStudent {
		msg = "Password set successfully! You can now log in."
	}
	return ctx.JSON(http.StatusCreated, SuccessResponse{Success: msg})
}

func (api *portalApi) logout(ctx echo.Context) error {
	tab, err := getContextTab(ctx)
	if err != nil {
		return err
	}
	tab.Logout()
	return ctx.NoContent(http.StatusNoContent)
}

func (api *portalApi) currentSession(ctx echo.Context) error {
	tab, err := getContextTab(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(tab.CurrentSession()))
}

func (api *portalApi) notices(ctx echo.Context) error {
	tab, err := getContextTab(ctx)
	if err != nil {
		return err
	}
	notices := tab.TakeNotices()
	if notices == nil {
		notices = []string{}
	}
	return ctx.JSON(http.StatusOK, NoticesResponse{Notices: notices})
}

func (api *portalApi) queryRoster(ctx echo.Context) error {
	tab, err := getContextTab(ctx)
	if err != nil {
		return err
	}
	filter, criteria := bindCriteria(ctx)
	students, err := tab.QueryRoster(filter, criteria)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newStudentsResponse(students))
}

func (api *portalApi) addOrUpdateStudent(ctx echo.Context) error {
	tab, err := getContextTab(ctx)
	if err != nil {
		return err
	}
	var data StudentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentRequest")
	}

	stud, err := tab.AddOrUpdateStudent(ctx.Request().Context(), data.newStudent(ctx.Param("id")))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newStudentResponse(stud))
}

func (api *portalApi) deleteStudent(ctx echo.Context) error {
	tab, err := getContextTab(ctx)
	if err != nil {
		return err
	}
	if err := tab.DeleteStudent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *portalApi) ownRecord(ctx echo.Context) error {
	tab, err := getContextTab(ctx)
	if err != nil {
		return err
	}
	stud, err := tab.StudentOwnRecord()
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newStudentResponse(stud))
}

func (api *portalApi) queryTeachers(ctx echo.Context) error {
	tab, err := getContextTab(ctx)
	if err != nil {
		return err
	}
	names, err := tab.Teachers()
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, names)
}
