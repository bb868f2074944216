package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const schedulePath = "/api/auth/class-schedule-patterns"

// Resource exposes the conventional REST operations of one entity
// collection. T is the entity, In its create/update payload.
type Resource[T any, In any] struct {
	client *Client
	path   string
}

// NewResource binds a collection path to a client.
func NewResource[T any, In any](c *Client, path string) Resource[T, In] {
	return Resource[T, In]{client: c, path: path}
}

// Path returns the collection path.
func (r Resource[T, In]) Path() string { return r.path }

// List fetches the whole collection.
func (r Resource[T, In]) List(ctx context.Context, query url.Values) ([]T, error) {
	res, err := r.client.send(ctx, request{method: http.MethodGet, path: r.path, query: query})
	if err != nil {
		return nil, err
	}
	return decodeList[T](res)
}

// ListByClass fetches the items that belong to one class.
func (r Resource[T, In]) ListByClass(ctx context.Context, classID int64) ([]T, error) {
	if classID <= 0 {
		return nil, &Error{Kind: KindValidation, Path: r.path, Fields: []FieldError{{Field: "classId", Message: requiredText}}}
	}
	res, err := r.client.send(ctx, request{method: http.MethodGet, path: r.itemPath("class", classID)})
	if err != nil {
		return nil, err
	}
	return decodeList[T](res)
}

// Get fetches one item.
func (r Resource[T, In]) Get(ctx context.Context, id int64) (T, error) {
	var zero T
	res, err := r.client.send(ctx, request{method: http.MethodGet, path: r.itemPath(id)})
	if err != nil {
		return zero, err
	}
	return decodeOne[T](res)
}

// Create validates in and posts it to the collection.
func (r Resource[T, In]) Create(ctx context.Context, in In) (T, error) {
	var zero T
	if err := ValidateInput(in); err != nil {
		return zero, err
	}
	res, err := r.client.send(ctx, request{method: http.MethodPost, path: r.path, body: in})
	if err != nil {
		return zero, err
	}
	return decodeOne[T](res)
}

// Update validates in and replaces item id.
func (r Resource[T, In]) Update(ctx context.Context, id int64, in In) (T, error) {
	var zero T
	if err := ValidateInput(in); err != nil {
		return zero, err
	}
	res, err := r.client.send(ctx, request{method: http.MethodPut, path: r.itemPath(id), body: in})
	if err != nil {
		return zero, err
	}
	return decodeOne[T](res)
}

// Delete removes item id.
func (r Resource[T, In]) Delete(ctx context.Context, id int64) error {
	_, err := r.client.send(ctx, request{method: http.MethodDelete, path: r.itemPath(id)})
	return err
}

func (r Resource[T, In]) itemPath(parts ...any) string {
	p := r.path
	for _, part := range parts {
		switch v := part.(type) {
		case int64:
			p += "/" + strconv.FormatInt(v, 10)
		case string:
			p += "/" + url.PathEscape(v)
		default:
			p += "/" + url.PathEscape(fmt.Sprint(v))
		}
	}
	return p
}

// Classes returns the /api/classes resource.
func (c *Client) Classes() Resource[Class, ClassInput] {
	return NewResource[Class, ClassInput](c, "/api/classes")
}

// Subjects returns the /api/subjects resource.
func (c *Client) Subjects() Resource[Subject, SubjectInput] {
	return NewResource[Subject, SubjectInput](c, "/api/subjects")
}

// Users returns the /api/users resource.
func (c *Client) Users() Resource[User, UserInput] {
	return NewResource[User, UserInput](c, "/api/users")
}

// Assignments returns the /api/assignments resource.
func (c *Client) Assignments() Resource[Assignment, AssignmentInput] {
	return NewResource[Assignment, AssignmentInput](c, "/api/assignments")
}

// Quizzes returns the /api/quizzes resource.
func (c *Client) Quizzes() Resource[Quiz, QuizInput] {
	return NewResource[Quiz, QuizInput](c, "/api/quizzes")
}

// Attendance returns the /api/attendance resource.
func (c *Client) Attendance() Resource[Attendance, AttendanceInput] {
	return NewResource[Attendance, AttendanceInput](c, "/api/attendance")
}

// Materials returns the /api/materials resource. Use UploadMaterial to
// create materials.
func (c *Client) Materials() Resource[Material, MaterialUpload] {
	return NewResource[Material, MaterialUpload](c, "/api/materials")
}

// Schedules returns the schedule pattern resource.
func (c *Client) Schedules() Resource[SchedulePattern, SchedulePatternInput] {
	return NewResource[SchedulePattern, SchedulePatternInput](c, schedulePath)
}
