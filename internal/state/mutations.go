package state

import (
	"context"

	"github.com/five82/roster/internal/api"
	"github.com/five82/roster/internal/mutation"
	"github.com/five82/roster/internal/query"
)

// Edit is the input of an update mutation.
type Edit[In any] struct {
	ID    int64
	Input In
}

// Ref identifies a class-scoped item.
type Ref struct {
	ClassID int64
	ID      int64
}

// collection describes how one entity list lives in the cache.
type collection[T, In any] struct {
	name  string
	key   func(classID int64) query.Key
	id    func(T) int64
	class func(In) int64
	draft func(id int64, in In) T
	// also lists extra keys a write invalidates, e.g. dashboard counters.
	also []query.Key
}

func (c collection[T, In]) classOf(in In) int64 {
	if c.class == nil {
		return 0
	}
	return c.class(in)
}

func (c collection[T, In]) affected(classID int64) []query.Key {
	return append([]query.Key{c.key(classID)}, c.also...)
}

func validateInput[In any](in In) error { return api.ValidateInput(in) }

func createDef[T, In any](s *Store, c collection[T, In], do func(context.Context, In) (T, error)) mutation.Def[In, T] {
	return mutation.Def[In, T]{
		Name:     "create-" + c.name,
		Do:       do,
		Validate: validateInput[In],
		Optimistic: []mutation.Optimistic[In]{{
			Key: func(in In) query.Key { return c.key(c.classOf(in)) },
			Apply: func(cur any, in In) any {
				return mutation.Append(cur, c.draft(mutation.PlaceholderID(), in))
			},
		}},
		Affected: func(in In) []query.Key { return c.affected(c.classOf(in)) },
		Refetch:  s.refetch,
	}
}

func updateDef[T, In any](s *Store, c collection[T, In], do func(context.Context, int64, In) (T, error)) mutation.Def[Edit[In], T] {
	return mutation.Def[Edit[In], T]{
		Name: "update-" + c.name,
		Do: func(ctx context.Context, e Edit[In]) (T, error) {
			return do(ctx, e.ID, e.Input)
		},
		Validate: func(e Edit[In]) error { return api.ValidateInput(e.Input) },
		Optimistic: []mutation.Optimistic[Edit[In]]{{
			Key: func(e Edit[In]) query.Key { return c.key(c.classOf(e.Input)) },
			Apply: func(cur any, e Edit[In]) any {
				return mutation.Replace(cur, func(v T) bool { return c.id(v) == e.ID }, c.draft(e.ID, e.Input))
			},
		}},
		Affected: func(e Edit[In]) []query.Key { return c.affected(c.classOf(e.Input)) },
		Refetch:  s.refetch,
	}
}

func deleteDef[T, In any](s *Store, c collection[T, In], do func(context.Context, int64) error) mutation.Def[Ref, struct{}] {
	return mutation.Def[Ref, struct{}]{
		Name: "delete-" + c.name,
		Do: func(ctx context.Context, r Ref) (struct{}, error) {
			return struct{}{}, do(ctx, r.ID)
		},
		Optimistic: []mutation.Optimistic[Ref]{{
			Key: func(r Ref) query.Key { return c.key(r.ClassID) },
			Apply: func(cur any, r Ref) any {
				return mutation.Remove(cur, func(v T) bool { return c.id(v) == r.ID })
			},
		}},
		Affected: func(r Ref) []query.Key { return c.affected(r.ClassID) },
		Refetch:  s.refetch,
	}
}

func global(key query.Key) func(int64) query.Key {
	return func(int64) query.Key { return key }
}

var (
	classes = collection[api.Class, api.ClassInput]{
		name: "class",
		key:  global(ClassesKey),
		id:   func(c api.Class) int64 { return c.ID },
		draft: func(id int64, in api.ClassInput) api.Class {
			return api.Class{ID: id, ClassName: in.ClassName, SchoolYear: in.SchoolYear, Semester: in.Semester, TeacherID: in.TeacherID}
		},
		also: []query.Key{DashboardKey},
	}
	subjects = collection[api.Subject, api.SubjectInput]{
		name: "subject",
		key:  global(SubjectsKey),
		id:   func(v api.Subject) int64 { return v.ID },
		draft: func(id int64, in api.SubjectInput) api.Subject {
			return api.Subject{ID: id, SubjectName: in.SubjectName, SubjectCode: in.SubjectCode, Description: in.Description, Credits: in.Credits}
		},
		also: []query.Key{DashboardKey},
	}
	users = collection[api.User, api.UserInput]{
		name: "user",
		key:  global(UsersKey),
		id:   func(v api.User) int64 { return v.ID },
		draft: func(id int64, in api.UserInput) api.User {
			u := api.User{ID: id, Username: in.Username, FullName: in.FullName, Email: in.Email, Role: in.Role, Active: true}
			if in.Active != nil {
				u.Active = *in.Active
			}
			return u
		},
		also: []query.Key{DashboardKey},
	}
	assignments = collection[api.Assignment, api.AssignmentInput]{
		name:  "assignment",
		key:   AssignmentsKey,
		id:    func(v api.Assignment) int64 { return v.ID },
		class: func(in api.AssignmentInput) int64 { return in.ClassID },
		draft: func(id int64, in api.AssignmentInput) api.Assignment {
			return api.Assignment{ID: id, ClassID: in.ClassID, SubjectID: in.SubjectID, Title: in.Title, Description: in.Description, DueDate: in.DueDate, MaxScore: in.MaxScore}
		},
		also: []query.Key{DashboardKey},
	}
	quizzes = collection[api.Quiz, api.QuizInput]{
		name:  "quiz",
		key:   QuizzesKey,
		id:    func(v api.Quiz) int64 { return v.ID },
		class: func(in api.QuizInput) int64 { return in.ClassID },
		draft: func(id int64, in api.QuizInput) api.Quiz {
			return api.Quiz{ID: id, ClassID: in.ClassID, Title: in.Title, Description: in.Description, DurationMinutes: in.DurationMinutes, StartTime: in.StartTime, EndTime: in.EndTime}
		},
		also: []query.Key{DashboardKey},
	}
	materials = collection[api.Material, api.MaterialUpload]{
		name:  "material",
		key:   MaterialsKey,
		id:    func(v api.Material) int64 { return v.ID },
		class: func(in api.MaterialUpload) int64 { return in.ClassID },
		draft: func(id int64, in api.MaterialUpload) api.Material {
			return api.Material{ID: id, ClassID: in.ClassID, Title: in.Title, Description: in.Description, FileName: in.FileName}
		},
	}
	schedules = collection[api.SchedulePattern, api.SchedulePatternInput]{
		name: "schedule",
		key:  SchedulesKey,
		id:   func(v api.SchedulePattern) int64 { return v.ID },
	}
)

// CreateClass creates a class. The list shows a placeholder row until the
// server answers.
func (s *Store) CreateClass(ctx context.Context, in api.ClassInput) mutation.Result[api.Class] {
	return mutation.New(s.runner, createDef(s, classes, s.client.Classes().Create)).Mutate(ctx, in)
}

// UpdateClass replaces class id.
func (s *Store) UpdateClass(ctx context.Context, id int64, in api.ClassInput) mutation.Result[api.Class] {
	return mutation.New(s.runner, updateDef(s, classes, s.client.Classes().Update)).Mutate(ctx, Edit[api.ClassInput]{ID: id, Input: in})
}

// DeleteClass deletes class id. The class-scoped lists of id are invalidated
// along with the class list.
func (s *Store) DeleteClass(ctx context.Context, id int64) mutation.Result[struct{}] {
	def := deleteDef(s, classes, s.client.Classes().Delete)
	def.Affected = func(r Ref) []query.Key {
		return append(classes.affected(r.ClassID), classScoped(r.ID)...)
	}
	return mutation.New(s.runner, def).Mutate(ctx, Ref{ID: id})
}

// classScoped lists the keys that hold data of one class.
func classScoped(id int64) []query.Key {
	return []query.Key{AssignmentsKey(id), QuizzesKey(id), AttendanceKey(id), MaterialsKey(id), SchedulesKey(id)}
}

// CreateSubject creates a subject.
func (s *Store) CreateSubject(ctx context.Context, in api.SubjectInput) mutation.Result[api.Subject] {
	return mutation.New(s.runner, createDef(s, subjects, s.client.Subjects().Create)).Mutate(ctx, in)
}

// UpdateSubject replaces subject id.
func (s *Store) UpdateSubject(ctx context.Context, id int64, in api.SubjectInput) mutation.Result[api.Subject] {
	return mutation.New(s.runner, updateDef(s, subjects, s.client.Subjects().Update)).Mutate(ctx, Edit[api.SubjectInput]{ID: id, Input: in})
}

// DeleteSubject deletes subject id.
func (s *Store) DeleteSubject(ctx context.Context, id int64) mutation.Result[struct{}] {
	return mutation.New(s.runner, deleteDef(s, subjects, s.client.Subjects().Delete)).Mutate(ctx, Ref{ID: id})
}

// CreateUser creates a user account.
func (s *Store) CreateUser(ctx context.Context, in api.UserInput) mutation.Result[api.User] {
	return mutation.New(s.runner, createDef(s, users, s.client.Users().Create)).Mutate(ctx, in)
}

// UpdateUser replaces user id.
func (s *Store) UpdateUser(ctx context.Context, id int64, in api.UserInput) mutation.Result[api.User] {
	return mutation.New(s.runner, updateDef(s, users, s.client.Users().Update)).Mutate(ctx, Edit[api.UserInput]{ID: id, Input: in})
}

// DeleteUser deletes user id.
func (s *Store) DeleteUser(ctx context.Context, id int64) mutation.Result[struct{}] {
	return mutation.New(s.runner, deleteDef(s, users, s.client.Users().Delete)).Mutate(ctx, Ref{ID: id})
}

// CreateAssignment creates an assignment in its class.
func (s *Store) CreateAssignment(ctx context.Context, in api.AssignmentInput) mutation.Result[api.Assignment] {
	return mutation.New(s.runner, createDef(s, assignments, s.client.Assignments().Create)).Mutate(ctx, in)
}

// DeleteAssignment deletes an assignment of a class.
func (s *Store) DeleteAssignment(ctx context.Context, ref Ref) mutation.Result[struct{}] {
	return mutation.New(s.runner, deleteDef(s, assignments, s.client.Assignments().Delete)).Mutate(ctx, ref)
}

// CreateQuiz creates a quiz in its class.
func (s *Store) CreateQuiz(ctx context.Context, in api.QuizInput) mutation.Result[api.Quiz] {
	return mutation.New(s.runner, createDef(s, quizzes, s.client.Quizzes().Create)).Mutate(ctx, in)
}

// DeleteQuiz deletes a quiz of a class.
func (s *Store) DeleteQuiz(ctx context.Context, ref Ref) mutation.Result[struct{}] {
	return mutation.New(s.runner, deleteDef(s, quizzes, s.client.Quizzes().Delete)).Mutate(ctx, ref)
}

// UploadMaterial uploads a file to a class. The upload itself is not
// optimistic; a placeholder would have no file behind it.
func (s *Store) UploadMaterial(ctx context.Context, up api.MaterialUpload) mutation.Result[api.Material] {
	return mutation.New(s.runner, mutation.Def[api.MaterialUpload, api.Material]{
		Name:     "upload-material",
		Do:       s.client.UploadMaterial,
		Validate: validateInput[api.MaterialUpload],
		Affected: func(in api.MaterialUpload) []query.Key { return materials.affected(in.ClassID) },
		Refetch:  s.refetch,
	}).Mutate(ctx, up)
}

// DeleteMaterial deletes a material of a class.
func (s *Store) DeleteMaterial(ctx context.Context, ref Ref) mutation.Result[struct{}] {
	return mutation.New(s.runner, deleteDef(s, materials, s.client.Materials().Delete)).Mutate(ctx, ref)
}

// MarkAttendance records a session's attendance. Rows for the same date and
// student are replaced in place.
func (s *Store) MarkAttendance(ctx context.Context, in api.AttendanceInput) mutation.Result[[]api.Attendance] {
	return mutation.New(s.runner, mutation.Def[api.AttendanceInput, []api.Attendance]{
		Name:     "mark-attendance",
		Do:       s.client.MarkAttendance,
		Validate: validateInput[api.AttendanceInput],
		Optimistic: []mutation.Optimistic[api.AttendanceInput]{{
			Key: func(in api.AttendanceInput) query.Key { return AttendanceKey(in.ClassID) },
			Apply: func(cur any, in api.AttendanceInput) any {
				next := cur
				for _, rec := range in.Records {
					next = mutation.Remove(next, func(a api.Attendance) bool {
						return a.Date == in.Date && a.StudentID == rec.StudentID
					})
					next = mutation.Append(next, api.Attendance{
						ID:        mutation.PlaceholderID(),
						ClassID:   in.ClassID,
						StudentID: rec.StudentID,
						Date:      in.Date,
						Status:    rec.Status,
					})
				}
				return next
			},
		}},
		Affected: func(in api.AttendanceInput) []query.Key {
			return []query.Key{AttendanceKey(in.ClassID), DashboardKey}
		},
		Refetch: s.refetch,
	}).Mutate(ctx, in)
}

// BatchUpdateSchedules replaces a class's weekly patterns. The whole batch
// is applied optimistically and rolled back as a unit on any error; the
// refetch afterwards shows whatever the server kept.
func (s *Store) BatchUpdateSchedules(ctx context.Context, batch api.ScheduleBatch) mutation.Result[[]api.SchedulePattern] {
	return mutation.New(s.runner, mutation.Def[api.ScheduleBatch, []api.SchedulePattern]{
		Name:     "batch-schedules",
		Do:       s.client.BatchUpdateSchedules,
		Validate: validateInput[api.ScheduleBatch],
		Optimistic: []mutation.Optimistic[api.ScheduleBatch]{{
			Key: func(b api.ScheduleBatch) query.Key { return SchedulesKey(b.ClassID) },
			Apply: func(_ any, b api.ScheduleBatch) any {
				out := make([]api.SchedulePattern, 0, len(b.Patterns))
				for _, p := range b.Patterns {
					id := p.ID
					if id == 0 {
						id = mutation.PlaceholderID()
					}
					out = append(out, api.SchedulePattern{
						ID: id, ClassID: b.ClassID, SubjectID: p.SubjectID, DayOfWeek: p.DayOfWeek,
						StartTime: p.StartTime, EndTime: p.EndTime, Room: p.Room,
					})
				}
				return out
			},
		}},
		Affected: func(b api.ScheduleBatch) []query.Key { return schedules.affected(b.ClassID) },
		Refetch:  s.refetch,
	}).Mutate(ctx, batch)
}

// DeleteSchedule deletes one schedule pattern of a class.
func (s *Store) DeleteSchedule(ctx context.Context, ref Ref) mutation.Result[struct{}] {
	return mutation.New(s.runner, deleteDef(s, schedules, s.client.Schedules().Delete)).Mutate(ctx, ref)
}
