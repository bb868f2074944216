package mockapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/five82/roster/internal/api"
)

// resource serves the conventional REST routes of one collection. T is the
// stored row, In the create/update payload.
type resource[T any, In any] struct {
	data  *dataset
	table func(*dataset) *table[T]
	// build turns a validated payload into a row. old is nil on create.
	// Callers hold data.mu.
	build   func(d *dataset, id int64, in In, old *T) (T, error)
	classOf func(T) int64
	// onDelete runs after a row is removed. Callers hold data.mu.
	onDelete func(d *dataset, id int64)
	// paged lists answer with a {"content": [...]} envelope.
	paged bool
	// guard applies to every route, reads included.
	guard []echo.MiddlewareFunc
}

// register mounts list, get and delete, plus create and update when build is
// set. Writes go through the write middlewares.
func (r resource[T, In]) register(g *echo.Group, path string, write ...echo.MiddlewareFunc) {
	rg := g.Group(path, r.guard...)
	rg.GET("", r.list)
	if r.classOf != nil {
		rg.GET("/class/:classId", r.listByClass)
	}
	rg.GET("/:id", r.get)
	if r.build != nil {
		rg.POST("", r.create, write...)
		rg.PUT("/:id", r.update, write...)
	}
	rg.DELETE("/:id", r.remove, write...)
}

func (r resource[T, In]) respondList(ctx echo.Context, rows []T) error {
	if r.paged {
		return ctx.JSON(http.StatusOK, echo.Map{"content": rows, "totalElements": len(rows)})
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (r resource[T, In]) list(ctx echo.Context) error {
	r.data.mu.Lock()
	rows := r.table(r.data).list(nil)
	r.data.mu.Unlock()
	return r.respondList(ctx, rows)
}

func (r resource[T, In]) listByClass(ctx echo.Context) error {
	classID, err := pathID(ctx, "classId")
	if err != nil {
		return err
	}
	r.data.mu.Lock()
	defer r.data.mu.Unlock()
	if _, ok := r.data.classes.get(classID); !ok {
		return errNotFound
	}
	rows := r.table(r.data).list(func(row T) bool { return r.classOf(row) == classID })
	return r.respondList(ctx, rows)
}

func (r resource[T, In]) get(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	r.data.mu.Lock()
	row, ok := r.table(r.data).get(id)
	r.data.mu.Unlock()
	if !ok {
		return errNotFound
	}
	return ctx.JSON(http.StatusOK, row)
}

func (r resource[T, In]) create(ctx echo.Context) error {
	in := new(In)
	if err := bindValid(ctx, in); err != nil {
		return err
	}
	r.data.mu.Lock()
	defer r.data.mu.Unlock()
	id := r.data.nextID()
	row, err := r.build(r.data, id, *in, nil)
	if err != nil {
		return err
	}
	r.table(r.data).put(id, row)
	return ctx.JSON(http.StatusCreated, row)
}

func (r resource[T, In]) update(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	in := new(In)
	if err := bindValid(ctx, in); err != nil {
		return err
	}
	r.data.mu.Lock()
	defer r.data.mu.Unlock()
	old, ok := r.table(r.data).get(id)
	if !ok {
		return errNotFound
	}
	row, err := r.build(r.data, id, *in, &old)
	if err != nil {
		return err
	}
	r.table(r.data).put(id, row)
	return ctx.JSON(http.StatusOK, row)
}

func (r resource[T, In]) remove(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	r.data.mu.Lock()
	defer r.data.mu.Unlock()
	if !r.table(r.data).remove(id) {
		return errNotFound
	}
	if r.onDelete != nil {
		r.onDelete(r.data, id)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func bindValid(ctx echo.Context, v interface{}) error {
	if err := ctx.Bind(v); err != nil {
		return err
	}
	return ctx.Validate(v)
}

func pathID(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (s *Server) registerRoutes(g *echo.Group) {
	d := s.data

	g.GET("/dashboard/stats", s.dashboard)

	resource[account, api.UserInput]{
		data:     d,
		table:    func(d *dataset) *table[account] { return d.users },
		build:    buildUser,
		onDelete: deleteUser,
		guard:    []echo.MiddlewareFunc{adminOnly},
	}.register(g, "/users")

	resource[api.Class, api.ClassInput]{
		data:     d,
		table:    func(d *dataset) *table[api.Class] { return d.classes },
		build:    buildClass,
		onDelete: deleteClass,
	}.register(g, "/classes", adminOnly)

	resource[api.Subject, api.SubjectInput]{
		data:  d,
		table: func(d *dataset) *table[api.Subject] { return d.subjects },
		build: buildSubject,
	}.register(g, "/subjects", adminOnly)

	resource[api.Assignment, api.AssignmentInput]{
		data:    d,
		table:   func(d *dataset) *table[api.Assignment] { return d.assignments },
		build:   buildAssignment,
		classOf: func(a api.Assignment) int64 { return a.ClassID },
		paged:   true,
	}.register(g, "/assignments", staffOnly)

	resource[api.Quiz, api.QuizInput]{
		data:    d,
		table:   func(d *dataset) *table[api.Quiz] { return d.quizzes },
		build:   buildQuiz,
		classOf: func(q api.Quiz) int64 { return q.ClassID },
		paged:   true,
	}.register(g, "/quizzes", staffOnly)

	resource[api.Attendance, api.AttendanceInput]{
		data:    d,
		table:   func(d *dataset) *table[api.Attendance] { return d.attendance },
		classOf: func(a api.Attendance) int64 { return a.ClassID },
	}.register(g, "/attendance", staffOnly)
	g.POST("/attendance", s.markAttendance, staffOnly)

	resource[api.Material, api.MaterialUpload]{
		data:     d,
		table:    func(d *dataset) *table[api.Material] { return d.materials },
		classOf:  func(m api.Material) int64 { return m.ClassID },
		onDelete: func(d *dataset, id int64) { delete(d.files, id) },
	}.register(g, "/materials", staffOnly)
	g.POST("/materials/upload", s.uploadMaterial, staffOnly, uploadLimit)
	g.GET("/materials/:id/download", s.downloadMaterial)

	resource[api.SchedulePattern, api.SchedulePatternInput]{
		data:    d,
		table:   func(d *dataset) *table[api.SchedulePattern] { return d.schedules },
		classOf: func(p api.SchedulePattern) int64 { return p.ClassID },
	}.register(g, "/auth/class-schedule-patterns", adminOnly)
	g.PUT("/auth/class-schedule-patterns/batch", s.batchSchedules, adminOnly)
}
