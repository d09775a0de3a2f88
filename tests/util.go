package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/roster"
	"github.com/trezcool/gradebook/storage/kv"
)

func NewRosterService(t *testing.T, store kv.Store) *roster.Service {
	validate, _ := core.NewValidator()
	svc := roster.NewService(store, validate)
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("NewRosterService() failed: %v", err)
	}
	return svc
}

func CreateStudent(t *testing.T, svc *roster.Service, id, name, branch, year, section string, marks ...string) roster.Student {
	stud, err := svc.AddOrUpdateStudent(context.Background(), roster.NewStudent{
		ID:      id,
		Name:    name,
		Branch:  branch,
		Year:    year,
		Section: section,
		Marks:   marks,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return stud
}

func StudentIDs(students []roster.Student) []string {
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	return ids
}

// Logger records log entries instead of printing them.
type Logger struct {
	mu      sync.Mutex
	Entries []string // "LEVEL: msg"
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, fmt.Sprintf("%s: %s", level, msg))
}

func (l *Logger) Has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	want := fmt.Sprintf("%s: %s", level, msg)
	for _, e := range l.Entries {
		if e == want {
			return true
		}
	}
	return false
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }
