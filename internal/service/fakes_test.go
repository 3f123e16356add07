package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/jobs"
)

// memoryEventStore enforces (student, date) uniqueness under a mutex, standing in for the
// database constraint.
type memoryEventStore struct {
	mu        sync.Mutex
	events    map[string]models.Attendance
	seq       int
	insertErr error
	listErr   error
	block     bool
}

func newMemoryEventStore() *memoryEventStore {
	return &memoryEventStore{events: map[string]models.Attendance{}}
}

func eventKey(studentID, date string) string {
	return studentID + "|" + date
}

func (m *memoryEventStore) InsertIfAbsent(ctx context.Context, record *models.Attendance) (*models.InsertResult, error) {
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := eventKey(record.StudentID, record.Date)
	if existing, ok := m.events[key]; ok {
		return &models.InsertResult{Created: false, Attendance: existing}, nil
	}
	m.seq++
	stored := *record
	stored.ID = fmt.Sprintf("evt-%d", m.seq)
	stored.CreatedAt = record.CheckInTime
	m.events[key] = stored
	return &models.InsertResult{Created: true, Attendance: stored}, nil
}

func (m *memoryEventStore) FindByDate(ctx context.Context, date string) ([]models.Attendance, error) {
	return m.List(ctx, models.AttendanceFilter{Date: date})
}

func (m *memoryEventStore) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]models.Attendance, 0)
	for _, evt := range m.events {
		if filter.Date != "" && evt.Date != filter.Date {
			continue
		}
		if filter.ClassName != "" && evt.ClassName != filter.ClassName {
			continue
		}
		if filter.BusNumber != "" && evt.BusNumber != filter.BusNumber {
			continue
		}
		rows = append(rows, evt)
	}
	return rows, nil
}

func (m *memoryEventStore) deleteForStudent(studentID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, evt := range m.events {
		if evt.StudentID == studentID {
			delete(m.events, key)
			n++
		}
	}
	return n
}

func (m *memoryEventStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// memoryRoster cascades deletes into events when set, mirroring the repository transaction.
type memoryRoster struct {
	mu        sync.Mutex
	students  map[string]models.Student
	events    *memoryEventStore
	findErr   error
	listErr   error
	deleteErr error
}

func newMemoryRoster(students ...models.Student) *memoryRoster {
	r := &memoryRoster{students: map[string]models.Student{}}
	for _, s := range students {
		r.students[s.StudentID] = s
	}
	return r
}

func (r *memoryRoster) FindByStudentID(ctx context.Context, studentID string) (*models.Student, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.students[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (r *memoryRoster) ListAll(ctx context.Context) ([]models.Student, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Student, 0, len(r.students))
	for _, s := range r.students {
		out = append(out, s)
	}
	return out, nil
}

func (r *memoryRoster) Create(ctx context.Context, student *models.Student) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.students[student.StudentID]; ok {
		return false, nil
	}
	student.CreatedAt = time.Now().UTC()
	student.UpdatedAt = student.CreatedAt
	r.students[student.StudentID] = *student
	return true, nil
}

func (r *memoryRoster) Update(ctx context.Context, student *models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.students[student.StudentID]; !ok {
		return sql.ErrNoRows
	}
	r.students[student.StudentID] = *student
	return nil
}

func (r *memoryRoster) Delete(ctx context.Context, studentID string) (int64, error) {
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.students[studentID]; !ok {
		return 0, sql.ErrNoRows
	}
	delete(r.students, studentID)
	if r.events == nil {
		return 0, nil
	}
	return r.events.deleteForStudent(studentID), nil
}

type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (c *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if c.getErr != nil {
		return c.getErr
	}
	c.mu.Lock()
	raw, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memoryCacheRepo) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *memoryCacheRepo) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (d *recordingDispatcher) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return nil
}
