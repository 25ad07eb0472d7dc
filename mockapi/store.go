package mockapi

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/irsalhamdi/lms-client/core/claims"
	"github.com/irsalhamdi/lms-client/core/course"
	"github.com/irsalhamdi/lms-client/core/enrollment"
	"github.com/irsalhamdi/lms-client/core/progress"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrBadCredentials   = errors.New("invalid email or password")
	ErrEmailTaken       = errors.New("email already registered")
	ErrAlreadyEnrolled  = errors.New("already enrolled in this course")
	ErrIntentNotPending = errors.New("payment intent is not pending")
)

type User struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  claims.Role `json:"role"`

	hash []byte
}

type enrollmentRec struct {
	ID             string
	UserID         string
	CourseID       string
	EnrolledAt     time.Time
	LastAccessedAt time.Time
}

type watchRec struct {
	WatchTime     float64
	TotalDuration float64
	Completed     bool
	UpdatedAt     time.Time
}

type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentSucceeded IntentStatus = "succeeded"
	IntentFailed    IntentStatus = "failed"
)

type Intent struct {
	TransactionID   string
	PaymentIntentID string
	ClientSecret    string
	UserID          string
	CourseID        string
	Amount          float64
	Currency        string
	Brand           string
	Last4           string
	Status          IntentStatus
	EnrollmentID    string
	CreatedAt       time.Time
}

// Store holds the whole state of the stand-in backend in memory.
type Store struct {
	mu          sync.RWMutex
	users       map[string]*User
	courses     map[string]course.Course
	courseOrder []string
	enrollments map[string]map[string]*enrollmentRec
	watches     map[string]map[string]watchRec
	intents     map[string]*Intent
}

func NewStore() *Store {
	return &Store{
		users:       make(map[string]*User),
		courses:     make(map[string]course.Course),
		enrollments: make(map[string]map[string]*enrollmentRec),
		watches:     make(map[string]map[string]watchRec),
		intents:     make(map[string]*Intent),
	}
}

// AddUser registers a user with a bcrypt hashed password.
func (s *Store) AddUser(name, email, password string, role claims.Role) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return User{}, ErrEmailTaken
		}
	}

	u := &User{ID: uuid.NewString(), Name: name, Email: email, Role: role, hash: hash}
	s.users[u.ID] = u
	return *u, nil
}

// Authenticate checks a password against the stored hash.
func (s *Store) Authenticate(email, password string) (User, error) {
	s.mu.RLock()
	var found *User
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			found = u
			break
		}
	}
	s.mu.RUnlock()

	if found == nil {
		return User{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(found.hash, []byte(password)); err != nil {
		return User{}, ErrBadCredentials
	}
	return *found, nil
}

func (s *Store) User(id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

// Courses returns the courses accepted by keep in creation order.
func (s *Store) Courses(keep func(course.Course) bool) []course.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []course.Course{}
	for _, id := range s.courseOrder {
		c := s.courses[id]
		if keep == nil || keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) Course(id string) (course.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[id]
	if !ok {
		return course.Course{}, ErrNotFound
	}
	return c, nil
}

// PutCourse creates or replaces c. Sections and lessons without an id get
// one.
func (s *Store) PutCourse(c course.Course) course.Course {
	for i := range c.Sections {
		if c.Sections[i].ID == "" {
			c.Sections[i].ID = uuid.NewString()
		}
		for j := range c.Sections[i].Lessons {
			if c.Sections[i].Lessons[j].ID == "" {
				c.Sections[i].Lessons[j].ID = uuid.NewString()
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[c.ID]; !ok {
		s.courseOrder = append(s.courseOrder, c.ID)
	}
	s.courses[c.ID] = c
	return c
}

func (s *Store) DeleteCourse(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[id]; !ok {
		return ErrNotFound
	}
	delete(s.courses, id)
	for i, cid := range s.courseOrder {
		if cid == id {
			s.courseOrder = append(s.courseOrder[:i], s.courseOrder[i+1:]...)
			break
		}
	}
	for _, byCourse := range s.enrollments {
		delete(byCourse, id)
	}
	return nil
}

// AddLesson puts l in the last section of the course, creating one when
// the course has none. l.Order is kept when it fits, otherwise l goes last.
func (s *Store) AddLesson(courseID string, l course.Lesson) (course.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[courseID]
	if !ok {
		return course.Lesson{}, ErrNotFound
	}
	if len(c.Sections) == 0 {
		c.Sections = []course.Section{{ID: uuid.NewString(), Title: c.Title, Order: 1}}
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}

	sec := &c.Sections[len(c.Sections)-1]
	at := len(sec.Lessons)
	if l.Order > 0 && l.Order-1 < at {
		at = l.Order - 1
	}
	sec.Lessons = course.Insert(sec.Lessons, at, l)

	s.courses[courseID] = c
	return sec.Lessons[at], nil
}

// Enroll records userID as a student of courseID.
func (s *Store) Enroll(userID, courseID string) (enrollment.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[courseID]
	if !ok {
		return enrollment.Enrollment{}, ErrNotFound
	}

	byCourse := s.enrollments[userID]
	if byCourse == nil {
		byCourse = make(map[string]*enrollmentRec)
		s.enrollments[userID] = byCourse
	}
	if _, ok := byCourse[courseID]; ok {
		return enrollment.Enrollment{}, ErrAlreadyEnrolled
	}

	now := time.Now().UTC()
	rec := &enrollmentRec{
		ID:             uuid.NewString(),
		UserID:         userID,
		CourseID:       courseID,
		EnrolledAt:     now,
		LastAccessedAt: now,
	}
	byCourse[courseID] = rec

	c.TotalStudents++
	s.courses[courseID] = c

	return s.enrollmentLocked(rec, c), nil
}

func (s *Store) Enrolled(userID, courseID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.enrollments[userID][courseID]
	return ok
}

// Enrollments lists the enrollments of userID, oldest first.
func (s *Store) Enrollments(userID string) []enrollment.Enrollment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*enrollmentRec, 0, len(s.enrollments[userID]))
	for _, rec := range s.enrollments[userID] {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].EnrolledAt.Before(recs[j].EnrolledAt) })

	out := make([]enrollment.Enrollment, 0, len(recs))
	for _, rec := range recs {
		c, ok := s.courses[rec.CourseID]
		if !ok {
			continue
		}
		out = append(out, s.enrollmentLocked(rec, c))
	}
	return out
}

func (s *Store) enrollmentLocked(rec *enrollmentRec, c course.Course) enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:             rec.ID,
		Course:         c,
		Progress:       s.snapshotLocked(rec.UserID, c).CompletionPercentage,
		EnrolledAt:     rec.EnrolledAt,
		LastAccessedAt: rec.LastAccessedAt,
	}
}

// SaveWatch records a lesson view and returns the resulting course
// progress.
func (s *Store) SaveWatch(userID, courseID, lessonID string, w watchRec) (progress.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[courseID]
	if !ok {
		return progress.Snapshot{}, ErrNotFound
	}
	if !hasLesson(c, lessonID) {
		return progress.Snapshot{}, fmt.Errorf("lesson %s: %w", lessonID, ErrNotFound)
	}

	k := userID + "/" + courseID
	byLesson := s.watches[k]
	if byLesson == nil {
		byLesson = make(map[string]watchRec)
		s.watches[k] = byLesson
	}

	prev := byLesson[lessonID]
	w.Completed = w.Completed || prev.Completed
	w.UpdatedAt = time.Now().UTC()
	byLesson[lessonID] = w

	if rec, ok := s.enrollments[userID][courseID]; ok {
		rec.LastAccessedAt = w.UpdatedAt
	}

	return s.snapshotLocked(userID, c), nil
}

func (s *Store) Progress(userID, courseID string) (progress.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[courseID]
	if !ok {
		return progress.Snapshot{}, ErrNotFound
	}
	return s.snapshotLocked(userID, c), nil
}

func (s *Store) snapshotLocked(userID string, c course.Course) progress.Snapshot {
	snap := progress.Snapshot{CompletedLessons: []string{}}

	byLesson := s.watches[userID+"/"+c.ID]
	lessons := c.Lessons()
	for _, l := range lessons {
		w, ok := byLesson[l.ID]
		if !ok {
			continue
		}
		snap.TotalTimeSpent += w.WatchTime
		if w.Completed {
			snap.CompletedLessons = append(snap.CompletedLessons, l.ID)
		}
	}

	if len(lessons) > 0 {
		snap.CompletionPercentage = float64(len(snap.CompletedLessons) * 100 / len(lessons))
	}
	return snap
}

func hasLesson(c course.Course, lessonID string) bool {
	for _, l := range c.Lessons() {
		if l.ID == lessonID {
			return true
		}
	}
	return false
}

func (s *Store) CreateIntent(in Intent) Intent {
	s.mu.Lock()
	defer s.mu.Unlock()

	in.Status = IntentPending
	in.CreatedAt = time.Now().UTC()
	cp := in
	s.intents[in.PaymentIntentID] = &cp
	return in
}

func (s *Store) Intent(paymentIntentID string) (Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.intents[paymentIntentID]
	if !ok {
		return Intent{}, ErrNotFound
	}
	return *in, nil
}

// SettleIntent moves a pending intent to status. A succeeded intent
// enrolls its buyer in the course.
func (s *Store) SettleIntent(paymentIntentID string, status IntentStatus) (Intent, error) {
	s.mu.Lock()
	in, ok := s.intents[paymentIntentID]
	if !ok {
		s.mu.Unlock()
		return Intent{}, ErrNotFound
	}
	if in.Status != IntentPending {
		s.mu.Unlock()
		return Intent{}, ErrIntentNotPending
	}
	in.Status = status
	settled := *in
	s.mu.Unlock()

	if status != IntentSucceeded {
		return settled, nil
	}

	e, err := s.Enroll(settled.UserID, settled.CourseID)
	if err != nil && !errors.Is(err, ErrAlreadyEnrolled) {
		return Intent{}, fmt.Errorf("enrolling after payment: %w", err)
	}

	s.mu.Lock()
	in.EnrollmentID = e.ID
	settled = *in
	s.mu.Unlock()

	return settled, nil
}
