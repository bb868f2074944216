package mockapi

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/five82/roster/internal/api"
)

const maxUploadSize = "10M"

var uploadLimit = middleware.BodyLimit(maxUploadSize)

func buildUser(d *dataset, id int64, in api.UserInput, old *account) (account, error) {
	for _, acc := range d.users.rows {
		if acc.Username == in.Username && acc.ID != id {
			return account{}, invalid("username", "username already taken")
		}
	}
	acc := account{User: api.User{
		ID:       id,
		Username: in.Username,
		FullName: in.FullName,
		Email:    in.Email,
		Role:     in.Role,
		Active:   true,
	}}
	if old != nil {
		acc.Active = old.Active
	}
	switch {
	case old == nil && in.Password == "":
		return account{}, invalid("password", "password is a required field")
	case in.Password != "":
		acc.hash = hashPassword(in.Password)
	default:
		acc.hash = old.hash
	}
	if in.Active != nil {
		acc.Active = *in.Active
	}
	return acc, nil
}

// deleteUser unassigns the user's classes. Callers hold mu.
func deleteUser(d *dataset, id int64) {
	for cid, c := range d.classes.rows {
		if c.TeacherID == id {
			c.TeacherID, c.TeacherName = 0, ""
			d.classes.put(cid, c)
		}
	}
}

func buildClass(d *dataset, id int64, in api.ClassInput, old *api.Class) (api.Class, error) {
	teacher, ok := d.users.get(in.TeacherID)
	if !ok || teacher.Role != api.RoleTeacher {
		return api.Class{}, invalid("teacherId", "teacher not found")
	}
	c := api.Class{
		ID:          id,
		ClassName:   in.ClassName,
		SchoolYear:  in.SchoolYear,
		Semester:    in.Semester,
		TeacherID:   teacher.ID,
		TeacherName: teacher.FullName,
	}
	if old != nil {
		c.StudentCount = old.StudentCount
	}
	return c, nil
}

// deleteClass removes everything scoped to the class. Callers hold mu.
func deleteClass(d *dataset, id int64) {
	for aid, a := range d.assignments.rows {
		if a.ClassID == id {
			d.assignments.remove(aid)
		}
	}
	for qid, q := range d.quizzes.rows {
		if q.ClassID == id {
			d.quizzes.remove(qid)
		}
	}
	for rid, r := range d.attendance.rows {
		if r.ClassID == id {
			d.attendance.remove(rid)
		}
	}
	for mid, m := range d.materials.rows {
		if m.ClassID == id {
			d.materials.remove(mid)
			delete(d.files, mid)
		}
	}
	for pid, p := range d.schedules.rows {
		if p.ClassID == id {
			d.schedules.remove(pid)
		}
	}
}

func buildSubject(d *dataset, id int64, in api.SubjectInput, _ *api.Subject) (api.Subject, error) {
	code := strings.ToUpper(in.SubjectCode)
	for _, s := range d.subjects.rows {
		if s.SubjectCode == code && s.ID != id {
			return api.Subject{}, invalid("subjectCode", "subject code already exists")
		}
	}
	return api.Subject{
		ID:          id,
		SubjectName: in.SubjectName,
		SubjectCode: code,
		Description: in.Description,
		Credits:     in.Credits,
	}, nil
}

func requireClass(d *dataset, classID int64) error {
	if _, ok := d.classes.get(classID); !ok {
		return invalid("classId", "class not found")
	}
	return nil
}

func buildAssignment(d *dataset, id int64, in api.AssignmentInput, _ *api.Assignment) (api.Assignment, error) {
	if err := requireClass(d, in.ClassID); err != nil {
		return api.Assignment{}, err
	}
	if in.SubjectID != 0 {
		if _, ok := d.subjects.get(in.SubjectID); !ok {
			return api.Assignment{}, invalid("subjectId", "subject not found")
		}
	}
	return api.Assignment{
		ID:          id,
		ClassID:     in.ClassID,
		SubjectID:   in.SubjectID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		MaxScore:    in.MaxScore,
	}, nil
}

func buildQuiz(d *dataset, id int64, in api.QuizInput, old *api.Quiz) (api.Quiz, error) {
	if err := requireClass(d, in.ClassID); err != nil {
		return api.Quiz{}, err
	}
	q := api.Quiz{
		ID:              id,
		ClassID:         in.ClassID,
		Title:           in.Title,
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
	}
	if old != nil {
		q.QuestionCount = old.QuestionCount
	}
	return q, nil
}

// markAttendance upserts one record per student for the class and date and
// answers with that session's records.
func (s *Server) markAttendance(ctx echo.Context) error {
	in := new(api.AttendanceInput)
	if err := bindValid(ctx, in); err != nil {
		return err
	}
	d := s.data
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := requireClass(d, in.ClassID); err != nil {
		return err
	}
	for i, mark := range in.Records {
		st, ok := d.users.get(mark.StudentID)
		if !ok || st.Role != api.RoleStudent {
			return invalid(fmt.Sprintf("records[%d].studentId", i), "student not found")
		}
	}

	existing := make(map[int64]int64)
	for id, r := range d.attendance.rows {
		if r.ClassID == in.ClassID && r.Date == in.Date {
			existing[r.StudentID] = id
		}
	}
	for _, mark := range in.Records {
		id, ok := existing[mark.StudentID]
		if !ok {
			id = d.nextID()
		}
		st, _ := d.users.get(mark.StudentID)
		d.attendance.put(id, api.Attendance{
			ID:          id,
			ClassID:     in.ClassID,
			StudentID:   mark.StudentID,
			StudentName: st.FullName,
			Date:        in.Date,
			Status:      mark.Status,
		})
	}
	rows := d.attendance.list(func(r api.Attendance) bool {
		return r.ClassID == in.ClassID && r.Date == in.Date
	})
	return ctx.JSON(http.StatusCreated, rows)
}

func (s *Server) uploadMaterial(ctx echo.Context) error {
	classID, _ := strconv.ParseInt(ctx.FormValue("classId"), 10, 64)
	fh, err := ctx.FormFile("file")
	if err != nil {
		return invalid("file", "file is a required field")
	}
	up := api.MaterialUpload{
		ClassID:     classID,
		Title:       ctx.FormValue("title"),
		Description: ctx.FormValue("description"),
		FileName:    filepath.Base(fh.Filename),
	}
	if err := ctx.Validate(&up); err != nil {
		return err
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = f.Close() }()
	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	d := s.data
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := requireClass(d, up.ClassID); err != nil {
		return err
	}
	id := d.nextID()
	m := api.Material{
		ID:          id,
		ClassID:     up.ClassID,
		Title:       up.Title,
		Description: up.Description,
		FileName:    up.FileName,
		FileURL:     fmt.Sprintf("/api/materials/%d/download", id),
		FileType:    strings.TrimPrefix(strings.ToLower(filepath.Ext(up.FileName)), "."),
		UploadedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	d.materials.put(id, m)
	d.files[id] = content
	s.app.Logger.Infof("material %d uploaded (%d bytes)", id, len(content))
	return ctx.JSON(http.StatusCreated, m)
}

func (s *Server) downloadMaterial(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	d := s.data
	d.mu.Lock()
	m, ok := d.materials.get(id)
	content := d.files[id]
	d.mu.Unlock()
	if !ok {
		return errNotFound
	}
	ctype := mime.TypeByExtension(filepath.Ext(m.FileName))
	if ctype == "" {
		ctype = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", m.FileName))
	return ctx.Blob(http.StatusOK, ctype, content)
}

// batchSchedules applies the patterns in order and then drops the class's
// patterns the batch did not mention. A pattern id that does not belong to
// the class stops the batch with the earlier patterns already applied.
func (s *Server) batchSchedules(ctx echo.Context) error {
	in := new(api.ScheduleBatch)
	if err := bindValid(ctx, in); err != nil {
		return err
	}
	d := s.data
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := requireClass(d, in.ClassID); err != nil {
		return err
	}

	kept := make(map[int64]bool, len(in.Patterns))
	for i, p := range in.Patterns {
		id := p.ID
		if id == 0 {
			id = d.nextID()
		} else if old, ok := d.schedules.get(id); !ok || old.ClassID != in.ClassID {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("patterns[%d]: schedule pattern %d not found", i, id))
		}
		d.schedules.put(id, api.SchedulePattern{
			ID:        id,
			ClassID:   in.ClassID,
			SubjectID: p.SubjectID,
			DayOfWeek: p.DayOfWeek,
			StartTime: p.StartTime,
			EndTime:   p.EndTime,
			Room:      p.Room,
		})
		kept[id] = true
	}
	for id, p := range d.schedules.rows {
		if p.ClassID == in.ClassID && !kept[id] {
			d.schedules.remove(id)
		}
	}
	rows := d.schedules.list(func(p api.SchedulePattern) bool { return p.ClassID == in.ClassID })
	return ctx.JSON(http.StatusOK, rows)
}

// dashboard derives the admin counters from the dataset.
func (s *Server) dashboard(ctx echo.Context) error {
	d := s.data
	d.mu.Lock()
	defer d.mu.Unlock()

	var stats api.DashboardStats
	stats.TotalClasses = len(d.classes.rows)
	stats.TotalSubjects = len(d.subjects.rows)
	stats.ActiveQuizzes = len(d.quizzes.rows)
	stats.PendingAssignments = len(d.assignments.rows)
	for _, acc := range d.users.rows {
		if !acc.Active {
			continue
		}
		switch acc.Role {
		case api.RoleStudent:
			stats.TotalStudents++
		case api.RoleTeacher:
			stats.TotalTeachers++
		}
	}
	var attended int
	for _, r := range d.attendance.rows {
		if r.Status == api.AttendancePresent || r.Status == api.AttendanceLate {
			attended++
		}
	}
	if n := len(d.attendance.rows); n > 0 {
		stats.AttendanceRate = float64(attended) * 100 / float64(n)
	}
	return ctx.JSON(http.StatusOK, stats)
}
