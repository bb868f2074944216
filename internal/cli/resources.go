package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/five82/roster/internal/api"
	"github.com/five82/roster/internal/mutation"
	"github.com/five82/roster/internal/state"
)

// column is one text-mode table column.
type column[T any] struct {
	title string
	value func(T) string
}

// entity describes how the CLI lists, reads, creates and deletes one
// resource. Optional operations are nil.
type entity[T any, In any] struct {
	name    string
	aliases []string
	scoped  bool // list needs --class
	columns []column[T]
	query   func(s *state.Store, classID int64) state.Query[[]T]
	get     func(c *api.Client) api.Resource[T, In]
	create  func(s *state.Store, ctx context.Context, in In) mutation.Result[T]
	remove  func(s *state.Store, ctx context.Context, ref state.Ref) mutation.Result[struct{}]
}

// resourceDef is an entity with its types erased for command dispatch.
type resourceDef struct {
	name    string
	aliases []string
	scoped  bool
	list    func(ctx context.Context, s *state.Store, classID int64, where *whereFilter) (listing, error)
	get     func(ctx context.Context, c *api.Client, id int64) (record, error)
	create  func(ctx context.Context, s *state.Store, payload []byte) (record, error)
	remove  func(ctx context.Context, s *state.Store, ref state.Ref) error
}

func (e entity[T, In]) def() resourceDef {
	d := resourceDef{name: e.name, aliases: e.aliases, scoped: e.scoped}

	d.list = func(ctx context.Context, s *state.Store, classID int64, where *whereFilter) (listing, error) {
		items, err := e.query(s, classID).Load(ctx)
		if err != nil {
			return listing{}, err
		}
		items, err = apply(where, items)
		if err != nil {
			return listing{}, WrapExitError(ExitCommandError, "filter", err)
		}
		return e.listing(items), nil
	}

	if e.get != nil {
		d.get = func(ctx context.Context, c *api.Client, id int64) (record, error) {
			item, err := e.get(c).Get(ctx, id)
			if err != nil {
				return record{}, err
			}
			return e.record(item), nil
		}
	}

	if e.create != nil {
		d.create = func(ctx context.Context, s *state.Store, payload []byte) (record, error) {
			var in In
			if err := decodePayload(payload, &in); err != nil {
				return record{}, err
			}
			item, err := e.create(s, ctx, in).Unwrap()
			if err != nil {
				return record{}, err
			}
			return e.record(item), nil
		}
	}

	if e.remove != nil {
		d.remove = func(ctx context.Context, s *state.Store, ref state.Ref) error {
			return e.remove(s, ctx, ref).Err()
		}
	}
	return d
}

func (e entity[T, In]) listing(items []T) listing {
	l := listing{items: items, columns: make([]string, len(e.columns))}
	for i, c := range e.columns {
		l.columns[i] = c.title
	}
	for _, item := range items {
		row := make([]string, len(e.columns))
		for i, c := range e.columns {
			row[i] = c.value(item)
		}
		l.rows = append(l.rows, row)
	}
	return l
}

func (e entity[T, In]) record(item T) record {
	r := record{item: item}
	for _, c := range e.columns {
		r.fields = append(r.fields, [2]string{c.title, c.value(item)})
	}
	return r
}

// decodePayload accepts JSON or YAML and decodes it into in by JSON field
// names, rejecting unknown fields.
func decodePayload(payload []byte, in any) error {
	var generic map[string]any
	if err := yaml.Unmarshal(payload, &generic); err != nil {
		return WrapExitError(ExitCommandError, "parse payload", err)
	}
	data, err := json.Marshal(generic)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse payload", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(in); err != nil {
		return WrapExitError(ExitCommandError, "decode payload", err)
	}
	return nil
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func idText(id int64) string {
	if mutation.IsPlaceholder(id) {
		return "pending"
	}
	return itoa(id)
}

var resources = []resourceDef{
	entity[api.Class, api.ClassInput]{
		name:    "classes",
		aliases: []string{"class"},
		columns: []column[api.Class]{
			{"ID", func(c api.Class) string { return idText(c.ID) }},
			{"CLASS", func(c api.Class) string { return c.ClassName }},
			{"YEAR", func(c api.Class) string { return strconv.Itoa(c.SchoolYear) }},
			{"SEMESTER", func(c api.Class) string { return c.Semester }},
			{"TEACHER", func(c api.Class) string { return c.TeacherName }},
			{"STUDENTS", func(c api.Class) string { return strconv.Itoa(c.StudentCount) }},
		},
		query: func(s *state.Store, _ int64) state.Query[[]api.Class] { return s.Classes() },
		get:   (*api.Client).Classes,
		create: func(s *state.Store, ctx context.Context, in api.ClassInput) mutation.Result[api.Class] {
			return s.CreateClass(ctx, in)
		},
		remove: func(s *state.Store, ctx context.Context, ref state.Ref) mutation.Result[struct{}] {
			return s.DeleteClass(ctx, ref.ID)
		},
	}.def(),

	entity[api.Subject, api.SubjectInput]{
		name:    "subjects",
		aliases: []string{"subject"},
		columns: []column[api.Subject]{
			{"ID", func(s api.Subject) string { return idText(s.ID) }},
			{"CODE", func(s api.Subject) string { return s.SubjectCode }},
			{"SUBJECT", func(s api.Subject) string { return s.SubjectName }},
			{"CREDITS", func(s api.Subject) string { return strconv.Itoa(s.Credits) }},
		},
		query: func(s *state.Store, _ int64) state.Query[[]api.Subject] { return s.Subjects() },
		get:   (*api.Client).Subjects,
		create: func(s *state.Store, ctx context.Context, in api.SubjectInput) mutation.Result[api.Subject] {
			return s.CreateSubject(ctx, in)
		},
		remove: func(s *state.Store, ctx context.Context, ref state.Ref) mutation.Result[struct{}] {
			return s.DeleteSubject(ctx, ref.ID)
		},
	}.def(),

	entity[api.User, api.UserInput]{
		name:    "users",
		aliases: []string{"user"},
		columns: []column[api.User]{
			{"ID", func(u api.User) string { return idText(u.ID) }},
			{"USERNAME", func(u api.User) string { return u.Username }},
			{"NAME", func(u api.User) string { return u.FullName }},
			{"EMAIL", func(u api.User) string { return u.Email }},
			{"ROLE", func(u api.User) string { return u.Role }},
			{"ACTIVE", func(u api.User) string { return strconv.FormatBool(u.Active) }},
		},
		query: func(s *state.Store, _ int64) state.Query[[]api.User] { return s.Users() },
		get:   (*api.Client).Users,
		create: func(s *state.Store, ctx context.Context, in api.UserInput) mutation.Result[api.User] {
			return s.CreateUser(ctx, in)
		},
		remove: func(s *state.Store, ctx context.Context, ref state.Ref) mutation.Result[struct{}] {
			return s.DeleteUser(ctx, ref.ID)
		},
	}.def(),

	entity[api.Assignment, api.AssignmentInput]{
		name:    "assignments",
		aliases: []string{"assignment"},
		scoped:  true,
		columns: []column[api.Assignment]{
			{"ID", func(a api.Assignment) string { return idText(a.ID) }},
			{"TITLE", func(a api.Assignment) string { return a.Title }},
			{"DUE", func(a api.Assignment) string { return a.DueDate }},
			{"MAX", func(a api.Assignment) string { return strconv.FormatFloat(a.MaxScore, 'f', -1, 64) }},
		},
		query:  (*state.Store).Assignments,
		get:    (*api.Client).Assignments,
		create: (*state.Store).CreateAssignment,
		remove: (*state.Store).DeleteAssignment,
	}.def(),

	entity[api.Quiz, api.QuizInput]{
		name:    "quizzes",
		aliases: []string{"quiz"},
		scoped:  true,
		columns: []column[api.Quiz]{
			{"ID", func(q api.Quiz) string { return idText(q.ID) }},
			{"TITLE", func(q api.Quiz) string { return q.Title }},
			{"MINUTES", func(q api.Quiz) string { return strconv.Itoa(q.DurationMinutes) }},
			{"STARTS", func(q api.Quiz) string { return q.StartTime }},
			{"QUESTIONS", func(q api.Quiz) string { return strconv.Itoa(q.QuestionCount) }},
		},
		query:  (*state.Store).Quizzes,
		get:    (*api.Client).Quizzes,
		create: (*state.Store).CreateQuiz,
		remove: (*state.Store).DeleteQuiz,
	}.def(),

	attendanceEntity.def(),
	materialEntity.def(),
	scheduleEntity.def(),
}

// The attend, upload and schedule commands render results with these.
var (
	attendanceEntity = entity[api.Attendance, api.AttendanceInput]{
		name:   "attendance",
		scoped: true,
		columns: []column[api.Attendance]{
			{"ID", func(a api.Attendance) string { return idText(a.ID) }},
			{"DATE", func(a api.Attendance) string { return a.Date }},
			{"STUDENT", func(a api.Attendance) string { return a.StudentName }},
			{"STATUS", func(a api.Attendance) string { return a.Status }},
		},
		query: (*state.Store).Attendance,
		get:   (*api.Client).Attendance,
	}
	materialEntity = entity[api.Material, api.MaterialUpload]{
		name:    "materials",
		aliases: []string{"material"},
		scoped:  true,
		columns: []column[api.Material]{
			{"ID", func(m api.Material) string { return idText(m.ID) }},
			{"TITLE", func(m api.Material) string { return m.Title }},
			{"FILE", func(m api.Material) string { return m.FileName }},
			{"TYPE", func(m api.Material) string { return m.FileType }},
			{"UPLOADED", func(m api.Material) string { return m.UploadedAt }},
		},
		query:  (*state.Store).Materials,
		get:    (*api.Client).Materials,
		remove: (*state.Store).DeleteMaterial,
	}
	scheduleEntity = entity[api.SchedulePattern, api.SchedulePatternInput]{
		name:    "schedules",
		aliases: []string{"schedule"},
		scoped:  true,
		columns: []column[api.SchedulePattern]{
			{"ID", func(p api.SchedulePattern) string { return idText(p.ID) }},
			{"DAY", func(p api.SchedulePattern) string { return weekday(p.DayOfWeek) }},
			{"START", func(p api.SchedulePattern) string { return p.StartTime }},
			{"END", func(p api.SchedulePattern) string { return p.EndTime }},
			{"ROOM", func(p api.SchedulePattern) string { return p.Room }},
		},
		query:  (*state.Store).Schedules,
		get:    (*api.Client).Schedules,
		remove: (*state.Store).DeleteSchedule,
	}
)

var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func weekday(day int) string {
	if day < 1 || day > len(weekdays) {
		return strconv.Itoa(day)
	}
	return weekdays[day-1]
}

// lookupResource finds a resource by name or alias.
func lookupResource(name string) (resourceDef, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range resources {
		if r.name == name {
			return r, nil
		}
		for _, a := range r.aliases {
			if a == name {
				return r, nil
			}
		}
	}
	return resourceDef{}, NewExitError(ExitCommandError, fmt.Sprintf("unknown resource %q (want one of %s)", name, strings.Join(resourceNames(), ", ")))
}

func resourceNames() []string {
	names := make([]string, 0, len(resources))
	for _, r := range resources {
		names = append(names, r.name)
	}
	sort.Strings(names)
	return names
}
