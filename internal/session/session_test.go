package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionDefaults(t *testing.T) {
	sess := New("abc")

	assert.Equal(t, StateIdle, sess.State())
	assert.Equal(t, models.DefaultDays, sess.Request().Days)
	assert.Nil(t, sess.Result())
	assert.NoError(t, sess.LastError())
}

func TestTransitions(t *testing.T) {
	sess := New("abc")

	require.NoError(t, sess.Transition(StateValidating))
	require.NoError(t, sess.Transition(StateGenerating))
	require.NoError(t, sess.Transition(StateRendering))
	require.NoError(t, sess.Transition(StateDone))
	require.NoError(t, sess.Transition(StateValidating))
	require.NoError(t, sess.Transition(StateFailed))

	err := sess.Transition(StateRendering)
	assert.Error(t, err)
	assert.Equal(t, StateFailed, sess.State())

	assert.False(t, CanTransition(StateIdle, StateGenerating))
	assert.False(t, CanTransition(StateDone, StateIdle))
	assert.True(t, CanTransition(StateGenerating, StateFailed))
}

func TestRequestIsCopied(t *testing.T) {
	sess := New("abc")
	interests := []string{"Museums"}
	sess.SetRequest(models.TripRequest{Destination: "Paris", Days: 2, Interests: interests})

	interests[0] = "changed"
	got := sess.Request()
	got.Interests = append(got.Interests, "more")

	assert.Equal(t, []string{"Museums"}, sess.Request().Interests)
}

func TestSetResultClearsError(t *testing.T) {
	sess := New("abc")
	sess.SetError(errors.New("boom"))
	sess.SetResult(&models.Result{})

	assert.NoError(t, sess.LastError())
	assert.NotNil(t, sess.Result())
}

func TestBeginRunSerializes(t *testing.T) {
	sess := New("abc")
	release := sess.BeginRun()

	acquired := make(chan struct{})
	go func() {
		done := sess.BeginRun()
		close(acquired)
		done()
	}()

	select {
	case <-acquired:
		t.Fatal("second run started while the first was active")
	case <-time.After(30 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second run never started")
	}
}

func TestManager(t *testing.T) {
	m := NewManager(time.Hour)

	sess, created := m.GetOrCreate("")
	require.True(t, created)
	require.NotEmpty(t, sess.ID)

	again, created := m.GetOrCreate(sess.ID)
	assert.False(t, created)
	assert.Same(t, sess, again)

	got, ok := m.Get(sess.ID)
	assert.True(t, ok)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, m.Count())

	m.Delete(sess.ID)
	_, ok = m.Get(sess.ID)
	assert.False(t, ok)

	_, ok = m.Get("")
	assert.False(t, ok)
}

func TestManagerExpires(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	sess, _ := m.GetOrCreate("short")

	time.Sleep(40 * time.Millisecond)

	_, ok := m.Get(sess.ID)
	assert.False(t, ok)
	fresh, created := m.GetOrCreate("short")
	assert.True(t, created)
	assert.NotSame(t, sess, fresh)
}

func TestManagerConcurrentCreate(t *testing.T) {
	m := NewManager(time.Hour)
	var wg sync.WaitGroup
	results := make([]*Session, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = m.GetOrCreate("same")
		}(i)
	}
	wg.Wait()

	for _, s := range results {
		assert.Same(t, results[0], s)
	}
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	sess := New("abc")

	c.Update(sess, models.TripRequest{Destination: "  Kyoto ", Days: 4, Interests: []string{"Temples", "temples"}})
	current := c.Current(sess)

	assert.Equal(t, "Kyoto", current.Destination)
	assert.Equal(t, []string{"Temples"}, current.Interests)
	assert.NoError(t, c.Validate(current))

	var verr *models.ValidationError
	require.ErrorAs(t, c.Validate(models.TripRequest{Days: 0}), &verr)
	assert.NotEmpty(t, verr.FieldMessage("destination"))
	assert.NotEmpty(t, verr.FieldMessage("days"))
}

func TestFromForm(t *testing.T) {
	req := FromForm(url.Values{
		"destination": {" Paris "},
		"days":        {"3"},
		"interests":   {"Museums", "Food & Cuisine, Nightlife", ""},
		"constraints": {"no stairs"},
	})

	assert.Equal(t, "Paris", req.Destination)
	assert.Equal(t, 3, req.Days)
	assert.Equal(t, []string{"Museums", "Food & Cuisine", "Nightlife"}, req.Interests)
	assert.Equal(t, "no stairs", req.Constraints)

	assert.Equal(t, 0, FromForm(url.Values{"days": {"three"}}).Days)
	assert.Equal(t, 0, FromForm(url.Values{"days": {"2.5"}}).Days)
}

func TestCookieStoreSessionID(t *testing.T) {
	store := NewCookieStore("0123456789abcdef0123456789abcdef", false, time.Hour)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	id, err := store.SessionID(rec, req)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	// the same cookie yields the same ID without re-issuing it
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookies[0])
	rec2 := httptest.NewRecorder()
	again, err := store.SessionID(rec2, req2)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Empty(t, rec2.Result().Cookies())
}

func TestCookieStoreRejectsForgedCookie(t *testing.T) {
	store := NewCookieStore("", false, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "forged"})
	id, err := store.SessionID(httptest.NewRecorder(), req)

	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestManagerCountByState(t *testing.T) {
	m := NewManager(time.Hour)
	m.GetOrCreate("idle")
	busy, _ := m.GetOrCreate("busy")
	require.NoError(t, busy.Transition(StateValidating))

	counts := m.CountByState()
	assert.Equal(t, 1, counts[StateIdle])
	assert.Equal(t, 1, counts[StateValidating])
	assert.Zero(t, counts[StateDone])
}
