package service

import (
	"context"
	"sync"

	"github.com/and161185/calsync/internal/model"
	"github.com/and161185/calsync/internal/tokenstore"
)

type fakeRemote struct {
	mu    sync.Mutex
	calls map[string]int

	loginOut    model.AuthResult
	loginErr    error
	registerOut model.AuthResult
	registerErr error
	renewOut    model.AuthResult
	renewErr    error

	listOut   []model.CalendarEvent
	listErr   error
	createID  string
	createErr error
	updateErr error
	// updateErrs overrides updateErr for the given 1-based call numbers.
	updateErrs map[int]error
	deleteErr  error

	created []model.CalendarEvent
	updated []model.CalendarEvent
	deleted []string

	// gate runs before each call returns; n is the 1-based call number for op.
	gate func(op string, n int)
}

var _ RemoteSessionClient = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote { return &fakeRemote{calls: map[string]int{}} }

func (f *fakeRemote) enter(op string) int {
	f.mu.Lock()
	f.calls[op]++
	n := f.calls[op]
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		gate(op, n)
	}
	return n
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) Login(_ context.Context, _, _ string) (model.AuthResult, error) {
	f.enter("login")
	return f.loginOut, f.loginErr
}

func (f *fakeRemote) Register(_ context.Context, _, _, _ string) (model.AuthResult, error) {
	f.enter("register")
	return f.registerOut, f.registerErr
}

func (f *fakeRemote) Renew(_ context.Context) (model.AuthResult, error) {
	f.enter("renew")
	return f.renewOut, f.renewErr
}

func (f *fakeRemote) ListEvents(_ context.Context) ([]model.CalendarEvent, error) {
	f.enter("list")
	return append([]model.CalendarEvent(nil), f.listOut...), f.listErr
}

func (f *fakeRemote) CreateEvent(_ context.Context, draft model.CalendarEvent) (string, error) {
	f.enter("create")
	f.mu.Lock()
	f.created = append(f.created, draft)
	f.mu.Unlock()
	return f.createID, f.createErr
}

func (f *fakeRemote) UpdateEvent(_ context.Context, _ string, patch model.CalendarEvent) error {
	n := f.enter("update")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, patch)
	if err, ok := f.updateErrs[n]; ok {
		return err
	}
	return f.updateErr
}

func (f *fakeRemote) DeleteEvent(_ context.Context, id string) error {
	f.enter("delete")
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	return f.deleteErr
}

type fixedUser struct{ u *model.User }

func (f fixedUser) CurrentUser() *model.User { return f.u }

type notice struct{ title, message string }

type recordingNotifier struct {
	mu  sync.Mutex
	got []notice
}

func (r *recordingNotifier) Notify(title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, notice{title, message})
}

func (r *recordingNotifier) all() []notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notice(nil), r.got...)
}

// failingClearStore refuses to clear; it checks that a failed wipe is reported.
type failingClearStore struct {
	*tokenstore.Memory
	err error
}

func (s failingClearStore) Clear() error { return s.err }
