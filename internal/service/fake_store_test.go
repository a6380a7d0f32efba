package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/institute-admission-api/internal/models"
	"github.com/noah-isme/institute-admission-api/internal/repository"
)

// fakeDB is an in-memory stand-in for the repository Store. WithinTx snapshots the
// state and restores it when the unit of work fails, which mirrors a rollback.
type fakeDB struct {
	mu sync.Mutex

	users         map[string]models.User
	courses       map[string]models.Course
	edges         []models.PrerequisiteEdge
	batches       map[string]models.Batch
	schedules     []models.Schedule
	enrollments   map[string]models.Enrollment
	waitlist      map[string]models.WaitlistEntry
	notifications []models.Notification
	audits        []models.AuditLog

	seq     int
	clock   time.Time
	txLog   []string
	failOn  map[string]error
	inTx    bool
	commits int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:       map[string]models.User{},
		courses:     map[string]models.Course{},
		batches:     map[string]models.Batch{},
		enrollments: map[string]models.Enrollment{},
		waitlist:    map[string]models.WaitlistEntry{},
		failOn:      map[string]error{},
		clock:       time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
	}
}

type fakeSnapshot struct {
	users         map[string]models.User
	courses       map[string]models.Course
	edges         []models.PrerequisiteEdge
	batches       map[string]models.Batch
	schedules     []models.Schedule
	enrollments   map[string]models.Enrollment
	waitlist      map[string]models.WaitlistEntry
	notifications []models.Notification
	audits        []models.AuditLog
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (f *fakeDB) snapshot() fakeSnapshot {
	return fakeSnapshot{
		users:         copyMap(f.users),
		courses:       copyMap(f.courses),
		edges:         append([]models.PrerequisiteEdge(nil), f.edges...),
		batches:       copyMap(f.batches),
		schedules:     append([]models.Schedule(nil), f.schedules...),
		enrollments:   copyMap(f.enrollments),
		waitlist:      copyMap(f.waitlist),
		notifications: append([]models.Notification(nil), f.notifications...),
		audits:        append([]models.AuditLog(nil), f.audits...),
	}
}

func (f *fakeDB) restore(s fakeSnapshot) {
	f.users, f.courses, f.edges, f.batches = s.users, s.courses, s.edges, s.batches
	f.schedules, f.enrollments, f.waitlist = s.schedules, s.enrollments, s.waitlist
	f.notifications, f.audits = s.notifications, s.audits
}

func (f *fakeDB) WithinTx(ctx context.Context, label string, fn func(admissionTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txLog = append(f.txLog, label)
	snap := f.snapshot()
	f.inTx = true
	err := fn(f)
	f.inTx = false
	if err != nil {
		f.restore(snap)
		return err
	}
	f.commits++
	return nil
}

func (f *fakeDB) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeDB) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeDB) fail(method string) error {
	return f.failOn[method]
}

// fixtures

func (f *fakeDB) addStudent(id, name string) {
	f.users[id] = models.User{ID: id, FullName: name, Email: id + "@example.com", Role: models.RoleStudent, Active: true}
}

func (f *fakeDB) addCourse(id, code, name string, prereq models.PrerequisiteEnforcement, conflict models.ConflictChecking) {
	f.courses[id] = models.Course{ID: id, Code: code, Name: name, PrerequisiteEnforcement: prereq, ScheduleConflictChecking: conflict, Active: true}
}

func (f *fakeDB) addBatch(id, courseID string, number, capacity int) {
	f.batches[id] = models.Batch{ID: id, CourseID: courseID, BatchNumber: number, Capacity: capacity, IsActive: true}
}

func (f *fakeDB) addSchedule(batchID string, day models.Weekday, start, end string) {
	s, _ := models.ParseClock(start)
	e, _ := models.ParseClock(end)
	f.schedules = append(f.schedules, models.Schedule{ID: f.nextID("sch"), BatchID: batchID, DayOfWeek: day, StartTime: s, EndTime: e})
}

func (f *fakeDB) addEnrollment(id, studentID, batchID string, status models.EnrollmentStatus) {
	b := f.batches[batchID]
	f.enrollments[id] = models.Enrollment{ID: id, StudentID: studentID, BatchID: batchID, CourseID: b.CourseID, Status: status, Source: models.SourceDirect, EnrolledAt: f.tick()}
	f.recount(batchID)
}

func (f *fakeDB) addWaiting(id, studentID, batchID string, position int) {
	f.waitlist[id] = models.WaitlistEntry{ID: id, StudentID: studentID, BatchID: batchID, Position: position, Status: models.WaitlistWaiting, JoinedAt: f.tick()}
}

func (f *fakeDB) recount(batchID string) int {
	b := f.batches[batchID]
	batchCount, courseCount := 0, 0
	for _, e := range f.enrollments {
		if !e.Status.Live() {
			continue
		}
		if e.BatchID == batchID {
			batchCount++
		}
		if e.CourseID == b.CourseID {
			courseCount++
		}
	}
	b.EnrolledCount = batchCount
	f.batches[batchID] = b
	c := f.courses[b.CourseID]
	c.EnrolledCount = courseCount
	f.courses[b.CourseID] = c
	return batchCount
}

func (f *fakeDB) waitingIn(batchID string) []models.WaitlistEntry {
	var out []models.WaitlistEntry
	for _, w := range f.waitlist {
		if w.BatchID == batchID && w.Status == models.WaitlistWaiting {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// users

func (f *fakeDB) FindUser(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (f *fakeDB) LockUser(ctx context.Context, id string) (*models.User, error) {
	return f.FindUser(ctx, id)
}

// courses

func (f *fakeDB) FindCourse(_ context.Context, id string) (*models.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (f *fakeDB) ListCourses(_ context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var out []models.Course
	for _, c := range f.courses {
		if filter.Search != "" && !strings.Contains(strings.ToLower(c.Code+" "+c.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, len(out), nil
}

func (f *fakeDB) CreateCourse(_ context.Context, course *models.Course) error {
	for _, c := range f.courses {
		if strings.EqualFold(c.Code, course.Code) {
			return &pq.Error{Code: "23505"}
		}
	}
	if course.ID == "" {
		course.ID = f.nextID("course")
	}
	f.courses[course.ID] = *course
	return nil
}

func (f *fakeDB) UpdateCourse(_ context.Context, course *models.Course) error {
	if _, ok := f.courses[course.ID]; !ok {
		return sql.ErrNoRows
	}
	f.courses[course.ID] = *course
	return nil
}

func (f *fakeDB) CountCourses(_ context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if _, ok := f.courses[id]; ok {
			n++
		}
	}
	return n, nil
}

func (f *fakeDB) LockPrerequisiteGraph(context.Context) error { return nil }

func (f *fakeDB) ListPrerequisiteEdges(context.Context) ([]models.PrerequisiteEdge, error) {
	return append([]models.PrerequisiteEdge(nil), f.edges...), nil
}

func (f *fakeDB) ReplacePrerequisites(_ context.Context, courseID string, ids []string) error {
	if err := f.fail("ReplacePrerequisites"); err != nil {
		return err
	}
	kept := f.edges[:0:0]
	for _, e := range f.edges {
		if e.CourseID != courseID {
			kept = append(kept, e)
		}
	}
	for _, id := range ids {
		kept = append(kept, models.PrerequisiteEdge{CourseID: courseID, PrerequisiteID: id})
	}
	f.edges = kept
	return nil
}

func (f *fakeDB) ListPrerequisites(_ context.Context, courseID string) ([]models.CourseRef, error) {
	var refs []models.CourseRef
	for _, e := range f.edges {
		if e.CourseID == courseID {
			c := f.courses[e.PrerequisiteID]
			refs = append(refs, models.CourseRef{ID: c.ID, Code: c.Code, Name: c.Name})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Code < refs[j].Code })
	return refs, nil
}

func (f *fakeDB) ListPrerequisiteProgress(ctx context.Context, courseID, studentID string) ([]models.PrerequisiteProgress, error) {
	refs, _ := f.ListPrerequisites(ctx, courseID)
	out := make([]models.PrerequisiteProgress, 0, len(refs))
	for _, ref := range refs {
		done := false
		for _, e := range f.enrollments {
			if e.StudentID == studentID && e.CourseID == ref.ID && e.Status == models.EnrollmentCompleted {
				done = true
				break
			}
		}
		out = append(out, models.PrerequisiteProgress{CourseRef: ref, Completed: done})
	}
	return out, nil
}

// batches

func (f *fakeDB) withCourse(b models.Batch) *models.Batch {
	c := f.courses[b.CourseID]
	b.CourseCode = c.Code
	b.CourseName = c.Name
	b.PrerequisiteEnforcement = c.PrerequisiteEnforcement
	b.ScheduleConflictChecking = c.ScheduleConflictChecking
	return &b
}

func (f *fakeDB) FindBatch(_ context.Context, id string) (*models.Batch, error) {
	b, ok := f.batches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return f.withCourse(b), nil
}

func (f *fakeDB) LockBatch(ctx context.Context, id string) (*models.Batch, error) {
	return f.FindBatch(ctx, id)
}

func (f *fakeDB) RefreshEnrolledCounts(_ context.Context, batchID, _ string) (int, error) {
	if err := f.fail("RefreshEnrolledCounts"); err != nil {
		return 0, err
	}
	return f.recount(batchID), nil
}

func (f *fakeDB) UpdateBatch(_ context.Context, batch *models.Batch) error {
	if err := f.fail("UpdateBatch"); err != nil {
		return err
	}
	if _, ok := f.batches[batch.ID]; !ok {
		return sql.ErrNoRows
	}
	f.batches[batch.ID] = *batch
	return nil
}

func (f *fakeDB) ListBatches(_ context.Context, filter models.BatchFilter) ([]models.Batch, int, error) {
	var out []models.Batch
	for _, b := range f.batches {
		if filter.CourseID != "" && b.CourseID != filter.CourseID {
			continue
		}
		out = append(out, *f.withCourse(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchNumber < out[j].BatchNumber })
	return out, len(out), nil
}

func (f *fakeDB) CreateBatch(_ context.Context, batch *models.Batch) error {
	for _, b := range f.batches {
		if b.CourseID == batch.CourseID && b.BatchNumber == batch.BatchNumber {
			return &pq.Error{Code: "23505"}
		}
	}
	if batch.ID == "" {
		batch.ID = f.nextID("batch")
	}
	f.batches[batch.ID] = *batch
	return nil
}

func (f *fakeDB) ListRoster(_ context.Context, batchID string) ([]models.RosterEntry, error) {
	var out []models.RosterEntry
	for _, e := range f.enrollments {
		if e.BatchID != batchID || e.Status == models.EnrollmentDropped {
			continue
		}
		u := f.users[e.StudentID]
		out = append(out, models.RosterEntry{EnrollmentID: e.ID, StudentID: u.ID, StudentName: u.FullName, StudentEmail: u.Email,
			Status: e.Status, Source: e.Source, EnrolledAt: e.EnrolledAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentName < out[j].StudentName })
	return out, nil
}

func (f *fakeDB) ListBatchKeys(context.Context) ([]repository.BatchKey, error) {
	keys := make([]repository.BatchKey, 0, len(f.batches))
	for _, b := range f.batches {
		keys = append(keys, repository.BatchKey{ID: b.ID, CourseID: b.CourseID})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys, nil
}

// schedules

func (f *fakeDB) ListBatchSchedules(_ context.Context, batchID string) ([]models.Schedule, error) {
	var out []models.Schedule
	for _, s := range f.schedules {
		if s.BatchID == batchID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeDB) ListHeldSchedules(_ context.Context, studentID, excludeBatchID string) ([]models.HeldSchedule, error) {
	var out []models.HeldSchedule
	for _, e := range f.enrollments {
		if e.StudentID != studentID || !e.Status.Live() || e.BatchID == excludeBatchID {
			continue
		}
		b := f.batches[e.BatchID]
		code := f.courses[b.CourseID].Code
		for _, s := range f.schedules {
			if s.BatchID == e.BatchID {
				out = append(out, models.HeldSchedule{Schedule: s, CourseCode: code, BatchNumber: b.BatchNumber})
			}
		}
	}
	return out, nil
}

func (f *fakeDB) CreateSchedule(_ context.Context, s *models.Schedule) error {
	if s.ID == "" {
		s.ID = f.nextID("sch")
	}
	f.schedules = append(f.schedules, *s)
	return nil
}

func (f *fakeDB) DeleteSchedule(_ context.Context, batchID, scheduleID string) (bool, error) {
	for i, s := range f.schedules {
		if s.ID == scheduleID && s.BatchID == batchID {
			f.schedules = append(f.schedules[:i], f.schedules[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// enrollments

func (f *fakeDB) FindEnrollment(_ context.Context, id string) (*models.Enrollment, error) {
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (f *fakeDB) LockEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	return f.FindEnrollment(ctx, id)
}

func (f *fakeDB) FindEnrollmentDetail(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return f.detail(e), nil
}

func (f *fakeDB) detail(e models.Enrollment) *models.EnrollmentDetail {
	u := f.users[e.StudentID]
	c := f.courses[e.CourseID]
	return &models.EnrollmentDetail{Enrollment: e, StudentName: u.FullName, StudentEmail: u.Email,
		CourseCode: c.Code, CourseName: c.Name, BatchNumber: f.batches[e.BatchID].BatchNumber}
}

func (f *fakeDB) ListEnrollments(_ context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var out []models.EnrollmentDetail
	for _, e := range f.enrollments {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.BatchID != "" && e.BatchID != filter.BatchID {
			continue
		}
		if filter.InstructorID != "" {
			ins := f.batches[e.BatchID].InstructorID
			if ins == nil || *ins != filter.InstructorID {
				continue
			}
		}
		out = append(out, *f.detail(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeDB) HasOpenEnrollment(_ context.Context, studentID, batchID string) (bool, error) {
	for _, e := range f.enrollments {
		if e.StudentID == studentID && e.BatchID == batchID && e.Status != models.EnrollmentDropped {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDB) FindLiveCourseEnrollment(_ context.Context, studentID, courseID, excludeBatchID string) (*models.HeldEnrollment, error) {
	for _, e := range f.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID && e.BatchID != excludeBatchID && e.Status.Live() {
			b := f.batches[e.BatchID]
			return &models.HeldEnrollment{EnrollmentID: e.ID, BatchID: b.ID, BatchNumber: b.BatchNumber, CourseName: f.courses[courseID].Name}, nil
		}
	}
	return nil, nil
}

func (f *fakeDB) InsertEnrollment(ctx context.Context, e *models.Enrollment) error {
	if err := f.fail("InsertEnrollment"); err != nil {
		return err
	}
	if open, _ := f.HasOpenEnrollment(ctx, e.StudentID, e.BatchID); open {
		return &pq.Error{Code: "23505"}
	}
	if e.ID == "" {
		e.ID = f.nextID("enr")
	}
	e.EnrolledAt = f.tick()
	e.UpdatedAt = e.EnrolledAt
	f.enrollments[e.ID] = *e
	return nil
}

func (f *fakeDB) DeleteEnrollment(_ context.Context, id string) error {
	if _, ok := f.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.enrollments, id)
	return nil
}

func (f *fakeDB) SetEnrollmentStatus(_ context.Context, id string, status models.EnrollmentStatus, grade *string) error {
	e, ok := f.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	if grade != nil {
		e.Grade = grade
	}
	f.enrollments[id] = e
	return nil
}

// waitlist

func (f *fakeDB) FindWaitlistEntry(_ context.Context, id string) (*models.WaitlistEntry, error) {
	w, ok := f.waitlist[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &w, nil
}

func (f *fakeDB) LockWaitlistEntry(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	return f.FindWaitlistEntry(ctx, id)
}

func (f *fakeDB) FindStudentEntry(_ context.Context, studentID, batchID string) (*models.WaitlistEntry, error) {
	for _, w := range f.waitlist {
		if w.StudentID == studentID && w.BatchID == batchID {
			return &w, nil
		}
	}
	return nil, nil
}

func (f *fakeDB) NextWaiting(_ context.Context, batchID string) (*models.WaitlistEntry, error) {
	waiting := f.waitingIn(batchID)
	if len(waiting) == 0 {
		return nil, nil
	}
	return &waiting[0], nil
}

func (f *fakeDB) NextWaitlistPosition(_ context.Context, batchID string) (int, error) {
	max := 0
	for _, w := range f.waitlist {
		if w.BatchID == batchID && w.Position > max {
			max = w.Position
		}
	}
	return max + 1, nil
}

func (f *fakeDB) InsertWaitlistEntry(_ context.Context, entry *models.WaitlistEntry) error {
	for _, w := range f.waitlist {
		if w.StudentID == entry.StudentID && w.BatchID == entry.BatchID {
			return &pq.Error{Code: "23505"}
		}
	}
	if entry.ID == "" {
		entry.ID = f.nextID("wl")
	}
	entry.JoinedAt = f.tick()
	f.waitlist[entry.ID] = *entry
	return nil
}

func (f *fakeDB) RequeueWaitlistEntry(_ context.Context, entry *models.WaitlistEntry) error {
	w := f.waitlist[entry.ID]
	w.Position = entry.Position
	w.Status = models.WaitlistWaiting
	w.Notified = false
	w.JoinedAt = f.tick()
	f.waitlist[entry.ID] = w
	*entry = w
	return nil
}

func (f *fakeDB) SetWaitlistStatus(_ context.Context, id string, status models.WaitlistStatus, notified bool) error {
	w, ok := f.waitlist[id]
	if !ok {
		return sql.ErrNoRows
	}
	w.Status = status
	w.Notified = notified
	f.waitlist[id] = w
	return nil
}

func (f *fakeDB) DeleteWaitlistEntry(_ context.Context, id string) error {
	if _, ok := f.waitlist[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.waitlist, id)
	return nil
}

func (f *fakeDB) RenumberWaitlist(_ context.Context, batchID string) error {
	for i, w := range f.waitingIn(batchID) {
		w.Position = i + 1
		f.waitlist[w.ID] = w
	}
	return nil
}

func (f *fakeDB) CountWaiting(_ context.Context, batchID string) (int, error) {
	return len(f.waitingIn(batchID)), nil
}

func (f *fakeDB) CountWaitingAhead(_ context.Context, entry *models.WaitlistEntry) (int, error) {
	n := 0
	for _, w := range f.waitingIn(entry.BatchID) {
		if w.ID == entry.ID {
			break
		}
		n++
	}
	return n, nil
}

func (f *fakeDB) ListWaitlist(_ context.Context, filter models.WaitlistFilter) ([]models.WaitlistEntryDetail, int, error) {
	var out []models.WaitlistEntryDetail
	for _, w := range f.waitlist {
		if filter.StudentID != "" && w.StudentID != filter.StudentID {
			continue
		}
		if filter.BatchID != "" && w.BatchID != filter.BatchID {
			continue
		}
		if filter.Status != "" && w.Status != filter.Status {
			continue
		}
		b := f.batches[w.BatchID]
		c := f.courses[b.CourseID]
		out = append(out, models.WaitlistEntryDetail{WaitlistEntry: w, StudentName: f.users[w.StudentID].FullName,
			CourseCode: c.Code, CourseName: c.Name, BatchNumber: b.BatchNumber})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, len(out), nil
}

// notifications and audit

func (f *fakeDB) InsertNotification(_ context.Context, n *models.Notification) error {
	if err := f.fail("InsertNotification"); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = f.nextID("ntf")
	}
	f.notifications = append(f.notifications, *n)
	return nil
}

func (f *fakeDB) ListNotifications(_ context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	var out []models.Notification
	for _, n := range f.notifications {
		if n.UserID == filter.UserID && (!filter.UnreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (f *fakeDB) MarkNotificationRead(_ context.Context, id, userID string) (bool, error) {
	for i, n := range f.notifications {
		if n.ID == id && n.UserID == userID {
			f.notifications[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDB) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = f.nextID("audit")
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = f.tick()
	}
	f.audits = append(f.audits, *log)
	return nil
}

func (f *fakeDB) ListAuditLogs(_ context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error) {
	if err := f.fail("ListAuditLogs"); err != nil {
		return nil, 0, err
	}
	var matched []models.AuditLog
	for i := len(f.audits) - 1; i >= 0; i-- {
		a := f.audits[i]
		if filter.Resource != "" && a.Resource != filter.Resource {
			continue
		}
		if filter.ResourceID != "" && (a.ResourceID == nil || *a.ResourceID != filter.ResourceID) {
			continue
		}
		if filter.UserID != "" && (a.UserID == nil || *a.UserID != filter.UserID) {
			continue
		}
		if filter.Action != "" && a.Action != filter.Action {
			continue
		}
		matched = append(matched, a)
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func (f *fakeDB) auditActions() []string {
	out := make([]string, 0, len(f.audits))
	for _, a := range f.audits {
		out = append(out, a.Action)
	}
	return out
}

type recordingInvalidator struct {
	batches []string
}

func (r *recordingInvalidator) InvalidateBatch(_ context.Context, batchID string) {
	r.batches = append(r.batches, batchID)
}
