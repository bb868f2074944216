package mockapi

import (
	"sort"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/five82/roster/internal/api"
)

// Seeded credentials for local development and tests.
const (
	AdminUsername   = "admin"
	AdminPassword   = "admin123"
	TeacherUsername = "gv.lan"
	TeacherPassword = "teacher123"
)

// table is an id-keyed collection. Callers hold dataset.mu.
type table[T any] struct {
	rows map[int64]T
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[int64]T)}
}

// list returns the rows that pass keep, ordered by id.
func (t *table[T]) list(keep func(T) bool) []T {
	ids := make([]int64, 0, len(t.rows))
	for id, row := range t.rows {
		if keep == nil || keep(row) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.rows[id])
	}
	return out
}

func (t *table[T]) get(id int64) (T, bool) {
	row, ok := t.rows[id]
	return row, ok
}

func (t *table[T]) put(id int64, row T) { t.rows[id] = row }

func (t *table[T]) remove(id int64) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	return true
}

// account is a user plus its password hash.
type account struct {
	api.User
	hash []byte
}

// dataset is the whole backend state guarded by one mutex.
type dataset struct {
	mu     sync.Mutex
	lastID int64

	users       *table[account]
	classes     *table[api.Class]
	subjects    *table[api.Subject]
	assignments *table[api.Assignment]
	quizzes     *table[api.Quiz]
	attendance  *table[api.Attendance]
	materials   *table[api.Material]
	files       map[int64][]byte
	schedules   *table[api.SchedulePattern]
}

func newDataset() *dataset {
	return &dataset{
		users:       newTable[account](),
		classes:     newTable[api.Class](),
		subjects:    newTable[api.Subject](),
		assignments: newTable[api.Assignment](),
		quizzes:     newTable[api.Quiz](),
		attendance:  newTable[api.Attendance](),
		materials:   newTable[api.Material](),
		files:       make(map[int64][]byte),
		schedules:   newTable[api.SchedulePattern](),
	}
}

// nextID hands out ids shared by every table. Callers hold mu.
func (d *dataset) nextID() int64 {
	d.lastID++
	return d.lastID
}

func (d *dataset) accountByUsername(username string) (account, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, acc := range d.users.rows {
		if acc.Username == username {
			return acc, true
		}
	}
	return account{}, false
}

// hashPassword uses the minimum bcrypt cost; the mock never stores real
// credentials.
func hashPassword(pwd string) []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return hash
}

// addUser inserts a user. Callers hold mu.
func (d *dataset) addUser(u api.User, pwd string) api.User {
	u.ID = d.nextID()
	d.users.put(u.ID, account{User: u, hash: hashPassword(pwd)})
	return u
}

// seed returns a small school: one admin, two teachers, four students,
// two classes with subjects, coursework, attendance and a timetable.
func seed() *dataset {
	d := newDataset()

	d.addUser(api.User{Username: AdminUsername, FullName: "Quản trị viên", Email: "admin@school.test", Role: api.RoleAdmin, Active: true}, AdminPassword)
	lan := d.addUser(api.User{Username: TeacherUsername, FullName: "Nguyễn Thị Lan", Email: "lan@school.test", Role: api.RoleTeacher, Active: true}, TeacherPassword)
	minh := d.addUser(api.User{Username: "gv.minh", FullName: "Trần Văn Minh", Email: "minh@school.test", Role: api.RoleTeacher, Active: true}, TeacherPassword)

	var students []api.User
	for _, s := range []struct{ user, name string }{
		{"hs.an", "Lê Văn An"},
		{"hs.binh", "Phạm Thị Bình"},
		{"hs.chau", "Hoàng Minh Châu"},
		{"hs.dung", "Vũ Tiến Dũng"},
	} {
		students = append(students, d.addUser(api.User{Username: s.user, FullName: s.name, Email: s.user + "@school.test", Role: api.RoleStudent, Active: true}, "student123"))
	}

	math := api.Subject{ID: d.nextID(), SubjectName: "Toán học", SubjectCode: "MATH10", Credits: 4}
	lit := api.Subject{ID: d.nextID(), SubjectName: "Ngữ văn", SubjectCode: "LIT10", Credits: 3}
	phys := api.Subject{ID: d.nextID(), SubjectName: "Vật lý", SubjectCode: "PHYS11", Credits: 3}
	for _, s := range []api.Subject{math, lit, phys} {
		d.subjects.put(s.ID, s)
	}

	c10 := api.Class{ID: d.nextID(), ClassName: "10A1", SchoolYear: 2025, Semester: "HK1", TeacherID: lan.ID, TeacherName: lan.FullName, StudentCount: 2}
	c11 := api.Class{ID: d.nextID(), ClassName: "11B2", SchoolYear: 2025, Semester: "HK1", TeacherID: minh.ID, TeacherName: minh.FullName, StudentCount: 2}
	d.classes.put(c10.ID, c10)
	d.classes.put(c11.ID, c11)

	a := api.Assignment{ID: d.nextID(), ClassID: c10.ID, SubjectID: math.ID, Title: "Bài tập hàm số", DueDate: "2025-10-20", MaxScore: 10}
	d.assignments.put(a.ID, a)
	q := api.Quiz{ID: d.nextID(), ClassID: c11.ID, Title: "Kiểm tra 15 phút", DurationMinutes: 15, StartTime: "2025-10-18T07:30:00Z", EndTime: "2025-10-18T07:45:00Z", QuestionCount: 10}
	d.quizzes.put(q.ID, q)

	for i, st := range students {
		class := c10
		if i >= 2 {
			class = c11
		}
		status := api.AttendancePresent
		switch i {
		case 1:
			status = api.AttendanceLate
		case 3:
			status = api.AttendanceAbsent
		}
		rec := api.Attendance{ID: d.nextID(), ClassID: class.ID, StudentID: st.ID, StudentName: st.FullName, Date: "2025-10-13", Status: status}
		d.attendance.put(rec.ID, rec)
	}

	for _, p := range []api.SchedulePattern{
		{ClassID: c10.ID, SubjectID: math.ID, DayOfWeek: 1, StartTime: "07:30", EndTime: "09:00", Room: "A101"},
		{ClassID: c10.ID, SubjectID: lit.ID, DayOfWeek: 3, StartTime: "09:15", EndTime: "10:45", Room: "A101"},
		{ClassID: c11.ID, SubjectID: phys.ID, DayOfWeek: 2, StartTime: "13:30", EndTime: "15:00", Room: "B204"},
	} {
		p.ID = d.nextID()
		d.schedules.put(p.ID, p)
	}
	return d
}
