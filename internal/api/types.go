package api

import "io"

// Roles understood by the backend.
const (
	RoleAdmin   = "ADMIN"
	RoleTeacher = "TEACHER"
	RoleStudent = "STUDENT"
)

// Attendance statuses.
const (
	AttendancePresent = "PRESENT"
	AttendanceAbsent  = "ABSENT"
	AttendanceLate    = "LATE"
	AttendanceExcused = "EXCUSED"
)

// Class mirrors /api/classes items.
type Class struct {
	ID           int64  `json:"id" validate:"required"`
	ClassName    string `json:"className" validate:"required"`
	SchoolYear   int    `json:"schoolYear"`
	Semester     string `json:"semester"`
	TeacherID    int64  `json:"teacherId"`
	TeacherName  string `json:"teacherName,omitempty"`
	StudentCount int    `json:"studentCount,omitempty"`
}

// ClassInput is the create/update payload for classes.
type ClassInput struct {
	ClassName  string `json:"className" validate:"required"`
	SchoolYear int    `json:"schoolYear" validate:"required,gte=2000,lte=2100"`
	Semester   string `json:"semester" validate:"required"`
	TeacherID  int64  `json:"teacherId" validate:"required"`
}

// Subject mirrors /api/subjects items.
type Subject struct {
	ID          int64  `json:"id" validate:"required"`
	SubjectName string `json:"subjectName" validate:"required"`
	SubjectCode string `json:"subjectCode"`
	Description string `json:"description,omitempty"`
	Credits     int    `json:"credits,omitempty"`
}

// SubjectInput is the create/update payload for subjects.
type SubjectInput struct {
	SubjectName string `json:"subjectName" validate:"required"`
	SubjectCode string `json:"subjectCode" validate:"required,alphanum"`
	Description string `json:"description,omitempty"`
	Credits     int    `json:"credits,omitempty" validate:"gte=0,lte=20"`
}

// User mirrors /api/users items.
type User struct {
	ID       int64  `json:"id" validate:"required"`
	Username string `json:"username" validate:"required"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
}

// UserInput is the create/update payload for users. Password is optional on
// update.
type UserInput struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password,omitempty" validate:"omitempty,min=6"`
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
	Active   *bool  `json:"active,omitempty"`
}

// Assignment mirrors /api/assignments items.
type Assignment struct {
	ID          int64   `json:"id" validate:"required"`
	ClassID     int64   `json:"classId"`
	SubjectID   int64   `json:"subjectId,omitempty"`
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description,omitempty"`
	DueDate     string  `json:"dueDate,omitempty"`
	MaxScore    float64 `json:"maxScore,omitempty"`
}

// AssignmentInput is the create/update payload for assignments.
type AssignmentInput struct {
	ClassID     int64   `json:"classId" validate:"required"`
	SubjectID   int64   `json:"subjectId,omitempty"`
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description,omitempty"`
	DueDate     string  `json:"dueDate" validate:"required"`
	MaxScore    float64 `json:"maxScore" validate:"gte=0"`
}

// Quiz mirrors /api/quizzes items.
type Quiz struct {
	ID              int64  `json:"id" validate:"required"`
	ClassID         int64  `json:"classId"`
	Title           string `json:"title" validate:"required"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
	StartTime       string `json:"startTime,omitempty"`
	EndTime         string `json:"endTime,omitempty"`
	QuestionCount   int    `json:"questionCount,omitempty"`
}

// QuizInput is the create/update payload for quizzes.
type QuizInput struct {
	ClassID         int64  `json:"classId" validate:"required"`
	Title           string `json:"title" validate:"required"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,gt=0"`
	StartTime       string `json:"startTime,omitempty"`
	EndTime         string `json:"endTime,omitempty"`
}

// Attendance is one student's attendance on one date.
type Attendance struct {
	ID          int64  `json:"id" validate:"required"`
	ClassID     int64  `json:"classId"`
	StudentID   int64  `json:"studentId" validate:"required"`
	StudentName string `json:"studentName,omitempty"`
	Date        string `json:"date" validate:"required"`
	Status      string `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
}

// AttendanceMark is one row of an AttendanceInput.
type AttendanceMark struct {
	StudentID int64  `json:"studentId" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
}

// AttendanceInput records a class session's attendance in one call.
type AttendanceInput struct {
	ClassID int64            `json:"classId" validate:"required"`
	Date    string           `json:"date" validate:"required"`
	Records []AttendanceMark `json:"records" validate:"required,min=1,dive"`
}

// Material mirrors /api/materials items.
type Material struct {
	ID          int64  `json:"id" validate:"required"`
	ClassID     int64  `json:"classId"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	FileURL     string `json:"fileUrl,omitempty"`
	FileType    string `json:"fileType,omitempty"`
	UploadedAt  string `json:"uploadedAt,omitempty"`
}

// MaterialUpload is a file upload request. Content is streamed as the
// multipart "file" part.
type MaterialUpload struct {
	ClassID     int64     `json:"classId" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description,omitempty"`
	FileName    string    `json:"fileName" validate:"required"`
	Content     io.Reader `json:"-" validate:"-"`
}

// SchedulePattern is a recurring weekly slot of a class.
type SchedulePattern struct {
	ID        int64  `json:"id" validate:"required"`
	ClassID   int64  `json:"classId"`
	SubjectID int64  `json:"subjectId,omitempty"`
	DayOfWeek int    `json:"dayOfWeek" validate:"gte=1,lte=7"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
	Room      string `json:"room,omitempty"`
}

// SchedulePatternInput is one pattern in a ScheduleBatch; ID zero creates.
type SchedulePatternInput struct {
	ID        int64  `json:"id,omitempty"`
	SubjectID int64  `json:"subjectId,omitempty"`
	DayOfWeek int    `json:"dayOfWeek" validate:"gte=1,lte=7"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
	Room      string `json:"room,omitempty"`
}

// ScheduleBatch replaces a class's patterns in one request.
type ScheduleBatch struct {
	ClassID  int64                  `json:"classId" validate:"required"`
	Patterns []SchedulePatternInput `json:"patterns" validate:"dive"`
}

// DashboardStats mirrors /api/dashboard/stats.
type DashboardStats struct {
	TotalClasses       int     `json:"totalClasses"`
	TotalStudents      int     `json:"totalStudents"`
	TotalTeachers      int     `json:"totalTeachers"`
	TotalSubjects      int     `json:"totalSubjects"`
	ActiveQuizzes      int     `json:"activeQuizzes"`
	PendingAssignments int     `json:"pendingAssignments"`
	AttendanceRate     float64 `json:"attendanceRate" validate:"gte=0,lte=100"`
}

// LoginRequest carries credentials for /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the session issued by /api/auth/login.
type LoginResponse struct {
	Token string `json:"token" validate:"required"`
	User  User   `json:"user"`
}
