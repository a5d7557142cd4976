package shortener

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/sundayezeilo/linkshield/internal/errx"
	"github.com/sundayezeilo/linkshield/internal/safety"
	"github.com/sundayezeilo/linkshield/internal/tracking"
)

/***************
 * Mocks
 ***************/

type mockDispatcher struct {
	mu           sync.Mutex
	dispatched   []tracking.LinkRef
	dispatchFunc func(ctx context.Context, link tracking.LinkRef, req tracking.RequestInfo) error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, link tracking.LinkRef, req tracking.RequestInfo) error {
	m.mu.Lock()
	m.dispatched = append(m.dispatched, link)
	m.mu.Unlock()
	if m.dispatchFunc != nil {
		return m.dispatchFunc(ctx, link, req)
	}
	return nil
}

func (m *mockDispatcher) Close(context.Context) error { return nil }

func (m *mockDispatcher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dispatched)
}

/***************
 * Helpers
 ***************/

func activeLink() Link {
	checked := serviceNow.Add(-time.Hour)
	expiry := serviceNow.Add(time.Hour)
	return Link{
		ID:          uuid.New(),
		ShortCode:   "abc1234",
		OriginalURL: "https://example.com/landing",
		Status:      StatusActive,
		Safety:      SafetyStatus{IsSafe: true, LastChecked: &checked, CacheExpiry: &expiry},
	}
}

func staleFlaggedLink() Link {
	l := activeLink()
	checked := serviceNow.Add(-48 * time.Hour)
	expiry := serviceNow.Add(-24 * time.Hour)
	l.Status = StatusFlagged
	l.Safety = SafetyStatus{IsSafe: false, LastChecked: &checked, CacheExpiry: &expiry, ThreatTypes: []string{"MALWARE"}}
	return l
}

func repoWith(link Link) *mockRepository {
	return &mockRepository{
		getByShortCodeFunc: func(_ context.Context, code string) (Link, error) {
			if code != link.ShortCode {
				return Link{}, errx.E("repo.GetByShortCode", errx.NotFound, errors.New("not found"))
			}
			return link, nil
		},
	}
}

func newTestRedirector(repo Repository, classifier safety.Classifier, d tracking.Dispatcher) *Redirector {
	return NewRedirector(RedirectorConfig{
		Repo:       repo,
		Classifier: classifier,
		Dispatcher: d,
		Logger:     discardLogger(),
		Now:        func() time.Time { return serviceNow },
	})
}

/***************
 * Resolve
 ***************/

func TestRedirectorResolve_Active(t *testing.T) {
	link := activeLink()
	d := &mockDispatcher{}
	classifier := &mockClassifier{}

	dest, err := newTestRedirector(repoWith(link), classifier, d).
		Resolve(context.Background(), "abc1234", tracking.RequestInfo{IP: "203.0.113.7"})
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if dest != link.OriginalURL {
		t.Errorf("dest = %q, want %q", dest, link.OriginalURL)
	}
	if d.Count() != 1 || d.dispatched[0] != link.Ref() {
		t.Errorf("dispatched = %+v", d.dispatched)
	}
	if classifier.Calls() != 0 {
		t.Errorf("active link must not be re-classified, got %d calls", classifier.Calls())
	}
}

func TestRedirectorResolve_NotServed(t *testing.T) {
	past := serviceNow.Add(-time.Minute)
	ceiling := int64(5)

	tests := []struct {
		name     string
		code     string
		mutate   func(*Link)
		wantKind errx.Kind
	}{
		{name: "missing", code: "nope", wantKind: errx.NotFound},
		{name: "expired", code: "abc1234", mutate: func(l *Link) { l.ExpiresAt = &past }, wantKind: errx.Gone},
		{name: "disabled", code: "abc1234", mutate: func(l *Link) { l.Status = StatusDisabled }, wantKind: errx.Gone},
		{name: "click ceiling reached", code: "abc1234", mutate: func(l *Link) { l.MaxClicks = &ceiling; l.ClickCount = 5 }, wantKind: errx.Gone},
		{
			name: "expired wins over flagged",
			code: "abc1234",
			mutate: func(l *Link) {
				l.Status = StatusFlagged
				l.ExpiresAt = &past
			},
			wantKind: errx.Gone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := activeLink()
			if tt.mutate != nil {
				tt.mutate(&link)
			}
			d := &mockDispatcher{}
			classifier := &mockClassifier{}

			_, err := newTestRedirector(repoWith(link), classifier, d).
				Resolve(context.Background(), tt.code, tracking.RequestInfo{})
			if errx.KindOf(err) != tt.wantKind {
				t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), tt.wantKind)
			}
			if d.Count() != 0 {
				t.Error("a link that is not served must not be tracked")
			}
			if classifier.Calls() != 0 {
				t.Error("classifier must not be called")
			}
		})
	}
}

func TestRedirectorResolve_TrackingFailureIsInvisible(t *testing.T) {
	link := activeLink()
	d := &mockDispatcher{dispatchFunc: func(context.Context, tracking.LinkRef, tracking.RequestInfo) error {
		return errors.New("database unavailable")
	}}

	dest, err := newTestRedirector(repoWith(link), &mockClassifier{}, d).
		Resolve(context.Background(), link.ShortCode, tracking.RequestInfo{})
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if dest != link.OriginalURL {
		t.Errorf("dest = %q", dest)
	}
}

func TestRedirectorResolve_LookupFailure(t *testing.T) {
	repo := &mockRepository{
		getByShortCodeFunc: func(context.Context, string) (Link, error) {
			return Link{}, errx.E("repo.GetByShortCode", errx.Unavailable, errors.New("db down"))
		},
	}
	_, err := newTestRedirector(repo, &mockClassifier{}, &mockDispatcher{}).
		Resolve(context.Background(), "abc1234", tracking.RequestInfo{})
	if errx.KindOf(err) != errx.Unavailable {
		t.Errorf("KindOf(err) = %v, want Unavailable", errx.KindOf(err))
	}
	if errx.OpOf(err) != "shortener.redirector.Resolve" {
		t.Errorf("OpOf(err) = %q", errx.OpOf(err))
	}
}

func TestRedirectorResolve_Flagged(t *testing.T) {
	t.Run("fresh unsafe verdict blocks without a classifier call", func(t *testing.T) {
		link := staleFlaggedLink()
		expiry := serviceNow.Add(time.Hour)
		link.Safety.CacheExpiry = &expiry
		link.Safety.LastChecked = &serviceNow
		classifier := &mockClassifier{}
		d := &mockDispatcher{}

		_, err := newTestRedirector(repoWith(link), classifier, d).
			Resolve(context.Background(), link.ShortCode, tracking.RequestInfo{})
		if errx.KindOf(err) != errx.Forbidden {
			t.Fatalf("KindOf(err) = %v, want Forbidden", errx.KindOf(err))
		}
		var ue *UnsafeError
		if !errors.As(err, &ue) || ue.ThreatTypes[0] != "MALWARE" {
			t.Errorf("expected UnsafeError with MALWARE, got %v", err)
		}
		if classifier.Calls() != 0 || d.Count() != 0 {
			t.Errorf("classifier calls = %d, dispatched = %d", classifier.Calls(), d.Count())
		}
	})

	t.Run("fresh safe verdict redirects", func(t *testing.T) {
		link := activeLink()
		link.Status = StatusFlagged
		d := &mockDispatcher{}

		dest, err := newTestRedirector(repoWith(link), &mockClassifier{}, d).
			Resolve(context.Background(), link.ShortCode, tracking.RequestInfo{})
		if err != nil {
			t.Fatalf("Resolve() unexpected error: %v", err)
		}
		if dest != link.OriginalURL || d.Count() != 1 {
			t.Errorf("dest = %q, dispatched = %d", dest, d.Count())
		}
	})

	t.Run("stale verdict is refreshed once and persisted", func(t *testing.T) {
		tests := []struct {
			name     string
			verdict  safety.Verdict
			wantKind errx.Kind
			wantErr  bool
		}{
			{name: "still unsafe", verdict: unsafeVerdictAt(serviceNow), wantErr: true, wantKind: errx.Forbidden},
			{name: "now safe", verdict: safeVerdictAt(serviceNow)},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				link := staleFlaggedLink()
				repo := repoWith(link)
				var persisted []SafetyStatus
				repo.updateSafetyFunc = func(_ context.Context, id uuid.UUID, s SafetyStatus) error {
					if id != link.ID {
						t.Errorf("id = %v", id)
					}
					persisted = append(persisted, s)
					return nil
				}
				classifier := &mockClassifier{checkFunc: func(_ context.Context, url string) safety.Verdict {
					if url != link.OriginalURL {
						t.Errorf("url = %q", url)
					}
					return tt.verdict
				}}

				_, err := newTestRedirector(repo, classifier, &mockDispatcher{}).
					Resolve(context.Background(), link.ShortCode, tracking.RequestInfo{})
				if (err != nil) != tt.wantErr {
					t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
				}
				if tt.wantErr && errx.KindOf(err) != tt.wantKind {
					t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), tt.wantKind)
				}
				if classifier.Calls() != 1 {
					t.Errorf("classifier calls = %d, want 1", classifier.Calls())
				}
				if len(persisted) != 1 || persisted[0].IsSafe != tt.verdict.IsSafe {
					t.Errorf("persisted = %+v", persisted)
				}
			})
		}
	})

	t.Run("persist failure does not change the outcome", func(t *testing.T) {
		link := staleFlaggedLink()
		repo := repoWith(link)
		repo.updateSafetyFunc = func(context.Context, uuid.UUID, SafetyStatus) error {
			return errx.E("repo.UpdateSafety", errx.Unavailable, errors.New("db down"))
		}
		classifier := &mockClassifier{checkFunc: func(context.Context, string) safety.Verdict {
			return safeVerdictAt(serviceNow)
		}}

		dest, err := newTestRedirector(repo, classifier, &mockDispatcher{}).
			Resolve(context.Background(), link.ShortCode, tracking.RequestInfo{})
		if err != nil {
			t.Fatalf("Resolve() unexpected error: %v", err)
		}
		if dest != link.OriginalURL {
			t.Errorf("dest = %q", dest)
		}
	})

	t.Run("provider failure is persisted with a short expiry", func(t *testing.T) {
		link := staleFlaggedLink()
		repo := repoWith(link)
		var persisted SafetyStatus
		repo.updateSafetyFunc = func(_ context.Context, _ uuid.UUID, s SafetyStatus) error {
			persisted = s
			return nil
		}
		classifier := &mockClassifier{checkFunc: func(context.Context, string) safety.Verdict {
			v := safeVerdictAt(serviceNow)
			v.Err = errors.New("safe browsing: unexpected status 503")
			return v
		}}

		if _, err := newTestRedirector(repo, classifier, &mockDispatcher{}).
			Resolve(context.Background(), link.ShortCode, tracking.RequestInfo{}); err != nil {
			t.Fatalf("Resolve() unexpected error: %v", err)
		}
		want := serviceNow.Add(safety.ErrorRecheck)
		if persisted.CacheExpiry == nil || !persisted.CacheExpiry.Equal(want) {
			t.Errorf("CacheExpiry = %v, want %v", persisted.CacheExpiry, want)
		}
		if !persisted.NeedsRefresh(want.Add(time.Second)) {
			t.Error("verdict should need a refresh once the recheck window passes")
		}
	})

	t.Run("concurrent refreshes share one classifier call", func(t *testing.T) {
		const n = 8
		link := staleFlaggedLink()

		var arrived sync.WaitGroup
		arrived.Add(n)
		repo := &mockRepository{
			getByShortCodeFunc: func(context.Context, string) (Link, error) {
				arrived.Done()
				return link, nil
			},
		}

		release := make(chan struct{})
		classifier := &mockClassifier{checkFunc: func(context.Context, string) safety.Verdict {
			<-release
			return safeVerdictAt(serviceNow)
		}}
		rd := newTestRedirector(repo, classifier, &mockDispatcher{})

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := rd.Resolve(context.Background(), link.ShortCode, tracking.RequestInfo{})
				errs <- err
			}()
		}

		arrived.Wait()
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Errorf("Resolve() unexpected error: %v", err)
			}
		}
		if classifier.Calls() != 1 {
			t.Errorf("classifier calls = %d, want 1", classifier.Calls())
		}
	})
}

/***************
 * HTTP handler
 ***************/

func TestRedirectorRedirect(t *testing.T) {
	past := serviceNow.Add(-time.Minute)

	flagged := staleFlaggedLink()
	expiry := serviceNow.Add(time.Hour)
	flagged.Safety.CacheExpiry = &expiry
	flagged.Safety.LastChecked = &serviceNow
	flagged.ShortCode = "flag123"

	expired := activeLink()
	expired.ShortCode = "old1234"
	expired.ExpiresAt = &past

	active := activeLink()

	links := map[string]Link{active.ShortCode: active, flagged.ShortCode: flagged, expired.ShortCode: expired}
	repo := &mockRepository{
		getByShortCodeFunc: func(_ context.Context, code string) (Link, error) {
			if l, ok := links[code]; ok {
				return l, nil
			}
			return Link{}, errx.E("repo.GetByShortCode", errx.NotFound, errors.New("not found"))
		},
	}

	var gotReq tracking.RequestInfo
	d := &mockDispatcher{dispatchFunc: func(_ context.Context, _ tracking.LinkRef, req tracking.RequestInfo) error {
		gotReq = req
		return nil
	}}
	rd := newTestRedirector(repo, &mockClassifier{}, d)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /r/{shortCode}", rd.Redirect)

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantError   string
		wantDetails bool
	}{
		{name: "redirects", path: "/r/abc1234", wantStatus: http.StatusFound},
		{name: "missing", path: "/r/nothere", wantStatus: http.StatusNotFound, wantError: "not_found"},
		{name: "expired", path: "/r/old1234", wantStatus: http.StatusGone, wantError: "gone"},
		{name: "unsafe", path: "/r/flag123", wantStatus: http.StatusForbidden, wantError: "forbidden", wantDetails: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("User-Agent", "test-agent")
			req.Header.Set("X-Forwarded-For", "198.51.100.4")
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusFound {
				if loc := rec.Header().Get("Location"); loc != active.OriginalURL {
					t.Errorf("Location = %q", loc)
				}
				if gotReq.IP != "198.51.100.4" || gotReq.UserAgent != "test-agent" {
					t.Errorf("request info = %+v", gotReq)
				}
				return
			}

			var body struct {
				Success bool                `json:"success"`
				Error   string              `json:"error"`
				Message string              `json:"message"`
				Details map[string][]string `json:"details"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Success || body.Error != tt.wantError {
				t.Errorf("body = %+v", body)
			}
			if body.Message == "" {
				t.Error("message should explain the refusal")
			}
			if tt.wantDetails {
				if got := strings.Join(body.Details["threatTypes"], ","); got != "MALWARE" {
					t.Errorf("threatTypes = %q", got)
				}
				if _, ok := body.Details["platformStatus"]; !ok {
					t.Error("platformStatus missing from details")
				}
			} else if body.Details != nil {
				t.Errorf("unexpected details %v", body.Details)
			}
		})
	}
}
