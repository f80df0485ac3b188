package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/azhar-edu/regbot/internal/models"
	"github.com/azhar-edu/regbot/internal/store"
)

func newTestManager() *Manager {
	return NewManager(store.NewInMemoryStore(), time.Hour)
}

func TestWithLockCreatesSession(t *testing.T) {
	m := newTestManager()

	err := m.WithLock("sess-1", "user-1", "data_siswa", func(s *models.SessionState) error {
		if s.SessionID != "sess-1" || s.CurrentStep != "data_siswa" {
			t.Errorf("unexpected new session: %+v", s)
		}
		if s.Phase != models.PhaseCollecting {
			t.Errorf("new session phase = %s, want collecting", s.Phase)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock failed: %v", err)
	}
}

func TestWithLockSerializesSameSession(t *testing.T) {
	m := newTestManager()

	const workers = 20
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithLock("sess-1", "", "data_siswa", func(s *models.SessionState) error {
				// Non-atomic read-modify-write; only safe under the session lock.
				c := counter
				time.Sleep(time.Microsecond)
				counter = c + 1
				return nil
			})
		}()
	}
	wg.Wait()
	if counter != workers {
		t.Errorf("counter = %d, want %d; session lock not serializing", counter, workers)
	}
}

func TestWithLockPropagatesError(t *testing.T) {
	m := newTestManager()
	sentinel := errors.New("boom")
	err := m.WithLock("sess-1", "", "data_siswa", func(s *models.SessionState) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
}

func TestSaveAndRecoverFromDraft(t *testing.T) {
	st := store.NewInMemoryStore()
	m := NewManager(st, time.Hour)

	err := m.WithLock("sess-1", "", "data_siswa", func(s *models.SessionState) error {
		SetField(s, "nama_lengkap", models.TextValue("Ahmad Fauzi"))
		s.CurrentStep = "data_kontak"
		return m.Save(s)
	})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// A fresh manager simulates a process restart; the session must come
	// back from the draft, not as a blank session.
	m2 := NewManager(st, time.Hour)
	err = m2.WithLock("sess-1", "", "data_siswa", func(s *models.SessionState) error {
		if s.Values["nama_lengkap"].Text != "Ahmad Fauzi" {
			t.Errorf("recovered session lost values: %+v", s.Values)
		}
		if s.CurrentStep != "data_kontak" {
			t.Errorf("recovered session step = %s, want data_kontak", s.CurrentStep)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
}

func TestExpiredSessionTreatedAsAbsent(t *testing.T) {
	st := store.NewInMemoryStore()
	m := NewManager(st, time.Millisecond)

	_ = m.WithLock("sess-1", "", "data_siswa", func(s *models.SessionState) error {
		SetField(s, "nama_lengkap", models.TextValue("Ahmad"))
		return m.Save(s)
	})

	time.Sleep(5 * time.Millisecond)

	_ = m.WithLock("sess-1", "", "data_siswa", func(s *models.SessionState) error {
		if len(s.Values) != 0 {
			t.Error("expired session must be replaced by a fresh one")
		}
		return nil
	})
}

func TestDeleteRemovesSessionAndDraft(t *testing.T) {
	st := store.NewInMemoryStore()
	m := NewManager(st, time.Hour)

	_ = m.WithLock("sess-1", "", "data_siswa", func(s *models.SessionState) error {
		return m.Save(s)
	})
	if err := m.Delete("sess-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if m.Peek("sess-1") != nil {
		t.Error("deleted session must not be peekable")
	}
	draft, _ := st.GetDraft("sess-1")
	if draft != nil {
		t.Error("durable draft must be deleted")
	}
}

func TestActivitiesTrackStepAndIdle(t *testing.T) {
	m := newTestManager()

	_ = m.WithLock("sess-1", "", "data_siswa", func(s *models.SessionState) error { return nil })
	m.RecordActivity("sess-1", 25)

	acts := m.Activities()
	if len(acts) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(acts))
	}
	if acts[0].CompletionPercent != 25 || acts[0].IsIdle {
		t.Errorf("unexpected activity: %+v", acts[0])
	}

	m.MarkIdle("sess-1", time.Now())
	m.IncrementTriggerCount("sess-1")
	acts = m.Activities()
	if !acts[0].IsIdle || acts[0].TriggersFired != 1 {
		t.Errorf("idle marking lost: %+v", acts[0])
	}

	// New activity clears the idle flag.
	m.RecordActivity("sess-1", 30)
	acts = m.Activities()
	if acts[0].IsIdle {
		t.Error("activity must clear idle flag")
	}
}

func TestSweepExpired(t *testing.T) {
	st := store.NewInMemoryStore()
	m := NewManager(st, time.Millisecond)

	_ = m.WithLock("sess-1", "", "data_siswa", func(s *models.SessionState) error { return nil })
	time.Sleep(5 * time.Millisecond)

	if removed := m.SweepExpired(); removed != 1 {
		t.Errorf("SweepExpired removed %d, want 1", removed)
	}

	draft, _ := st.GetDraft("sess-1")
	if draft == nil {
		t.Fatal("sweep must keep the durable draft")
	}
	if draft.Status != models.SessionStatusExpired {
		t.Errorf("swept draft status = %s, want expired", draft.Status)
	}
}

func TestPeekReturnsDetachedCopy(t *testing.T) {
	m := newTestManager()
	if err := m.WithLock("sess-1", "", "data_siswa", func(s *models.SessionState) error {
		SetField(s, "nama_lengkap", models.TextValue("Ahmad"))
		return nil
	}); err != nil {
		t.Fatalf("WithLock failed: %v", err)
	}

	snap := m.Peek("sess-1")
	if snap == nil {
		t.Fatal("Peek returned nil for live session")
	}

	// Readers hold the snapshot without the session lock, so its maps and
	// slices must not be shared with the live state.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = m.WithLock("sess-1", "", "data_siswa", func(s *models.SessionState) error {
				SetField(s, "nomor_hp", models.TextValue("0812345678"))
				s.ValidationErrors = map[string]string{"nomor_hp": "x"}
				s.Documents = map[string]models.DocumentUpload{"akta_kelahiran": {FieldID: "akta_kelahiran"}}
				AddMessage(s, "user", "halo")
				return nil
			})
		}
	}()
	total := 0
	for i := 0; i < 200; i++ {
		for range snap.Values {
			total++
		}
		for range snap.ValidationErrors {
			total++
		}
		for range snap.Documents {
			total++
		}
		total += len(snap.History)
	}
	<-done
	_ = total

	if got := snap.Values["nama_lengkap"].Text; got != "Ahmad" {
		t.Errorf("snapshot value = %q, want Ahmad", got)
	}

	// Mutating the snapshot must not leak into the live session.
	snap.Values["nama_lengkap"] = models.TextValue("Budi")
	if live := m.Peek("sess-1"); live.Values["nama_lengkap"].Text != "Ahmad" {
		t.Error("snapshot mutation leaked into live session")
	}
}
