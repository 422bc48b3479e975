package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/donor-registry/internal/backend"
	"github.com/iliyamo/donor-registry/internal/donorlist"
	"github.com/iliyamo/donor-registry/internal/middleware"
	"github.com/iliyamo/donor-registry/internal/model"
	"github.com/iliyamo/donor-registry/internal/queue"
	"github.com/iliyamo/donor-registry/internal/repository"
	"github.com/iliyamo/donor-registry/internal/service"
	"github.com/iliyamo/donor-registry/internal/utils"
)

var testNow = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

func init() {
	clock = func() time.Time { return testNow }
}

// ----- fakes -----

type memDonors struct {
	mu       sync.Mutex
	rows     []model.Donor
	tokens   []string
	searches []repository.DonorQuery
	err      error
}

func (m *memDonors) find(pred func(model.Donor) bool) (int, bool) {
	for i, d := range m.rows {
		if pred(d) {
			return i, true
		}
	}
	return -1, false
}

func (m *memDonors) ListAll(context.Context) ([]model.Donor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]model.Donor(nil), m.rows...), nil
}

func (m *memDonors) Search(_ context.Context, q repository.DonorQuery) (donorlist.Page[model.Donor], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, q)
	f := donorlist.Filter{Search: q.Search, BloodType: q.BloodType, District: q.District, City: q.City, SortBy: q.SortBy, Descending: q.Descending}
	return donorlist.Paginate(donorlist.Apply(m.rows, f, testNow), q.Page, q.PageSize), nil
}

func (m *memDonors) GetByID(_ context.Context, id string) (*model.Donor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.find(func(d model.Donor) bool { return d.ID == id })
	if !ok {
		return nil, repository.ErrDonorNotFound
	}
	d := m.rows[i]
	return &d, nil
}

func (m *memDonors) GetByUserID(ctx context.Context, userID string) (*model.Donor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, backend.AccessToken(ctx))
	i, ok := m.find(func(d model.Donor) bool { return d.UserID != nil && *d.UserID == userID })
	if !ok {
		return nil, repository.ErrDonorNotFound
	}
	d := m.rows[i]
	return &d, nil
}

func (m *memDonors) Create(ctx context.Context, in model.DonorInput, userID *string) (*model.Donor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, backend.AccessToken(ctx))
	d := model.Donor{
		ID: uuid.NewString(), UserID: userID, Name: in.Name, Phone: in.Phone,
		BloodType: model.BloodType(in.BloodType), District: in.District, City: in.City,
		Age: in.Age, LastDonationDate: in.LastDonationDate, CreatedAt: testNow,
	}
	if in.Email != "" {
		e := in.Email
		d.Email = &e
	}
	m.rows = append(m.rows, d)
	return &d, nil
}

func (m *memDonors) Update(_ context.Context, id string, p model.DonorPatch) (*model.Donor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.find(func(d model.Donor) bool { return d.ID == id })
	if !ok {
		return nil, repository.ErrDonorNotFound
	}
	d := &m.rows[i]
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.City != nil {
		d.City = *p.City
	}
	if p.Age != nil {
		d.Age = *p.Age
	}
	out := *d
	return &out, nil
}

func (m *memDonors) RecordDonation(_ context.Context, id string, day model.Date) (*model.Donor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.find(func(d model.Donor) bool { return d.ID == id })
	if !ok {
		return nil, repository.ErrDonorNotFound
	}
	m.rows[i].LastDonationDate = &day
	out := m.rows[i]
	return &out, nil
}

func (m *memDonors) SetProfilePicture(_ context.Context, id, url string) (*model.Donor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.find(func(d model.Donor) bool { return d.ID == id })
	if !ok {
		return nil, repository.ErrDonorNotFound
	}
	m.rows[i].ProfilePictureURL = &url
	out := m.rows[i]
	return &out, nil
}

func (m *memDonors) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.find(func(d model.Donor) bool { return d.ID == id })
	if !ok {
		return repository.ErrDonorNotFound
	}
	m.rows = append(m.rows[:i], m.rows[i+1:]...)
	return nil
}

func (m *memDonors) Stats(context.Context, time.Time) (repository.DonorStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return repository.DonorStats{Total: len(m.rows)}, nil
}

type fakeAuth struct {
	withSession bool
	signedOut   []string
}

func (f *fakeAuth) SignUp(_ context.Context, email, _ string, meta map[string]any) (*backend.SignUpResult, error) {
	u := backend.User{ID: "user-1", Email: email, UserMetadata: meta}
	res := &backend.SignUpResult{User: u}
	if f.withSession {
		res.Session = &backend.Session{AccessToken: "tok-1", RefreshToken: "ref-1", User: u}
	}
	return res, nil
}

func (f *fakeAuth) SignInWithPassword(_ context.Context, email, password string) (*backend.Session, error) {
	if password != "correct-horse" {
		return nil, &backend.APIError{Status: http.StatusBadRequest, Message: "Invalid login credentials"}
	}
	return &backend.Session{AccessToken: "tok-1", RefreshToken: "ref-1", User: backend.User{ID: "user-1", Email: email}}, nil
}

func (f *fakeAuth) RefreshSession(_ context.Context, rt string) (*backend.Session, error) {
	return &backend.Session{AccessToken: "tok-2", RefreshToken: rt + "-next"}, nil
}

func (f *fakeAuth) SignOut(_ context.Context, tok string) error {
	f.signedOut = append(f.signedOut, tok)
	return nil
}

type fakeObjects struct {
	uploaded map[string][]byte
	removed  []string
}

func (f *fakeObjects) Upload(_ context.Context, _, path string, body io.Reader, _ string, _ bool) (string, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if f.uploaded == nil {
		f.uploaded = map[string][]byte{}
	}
	f.uploaded[path] = b
	return "pics/" + path, nil
}

func (f *fakeObjects) PublicURL(bucket, path string) string {
	return "https://cdn.example.com/" + bucket + "/" + path
}

func (f *fakeObjects) PathFromPublicURL(bucket, u string) (string, bool) {
	return strings.CutPrefix(u, "https://cdn.example.com/"+bucket+"/")
}

func (f *fakeObjects) Remove(_ context.Context, _ string, paths ...string) error {
	f.removed = append(f.removed, paths...)
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []queue.DonorEvent
}

func (r *recordingEvents) Publish(_ context.Context, ev queue.DonorEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingCache struct{ groups []string }

func (r *recordingCache) Invalidate(_ context.Context, groups ...string) {
	r.groups = append(r.groups, groups...)
}

type stubUsers struct{}

func (stubUsers) GetUser(_ context.Context, tok string) (*backend.User, error) {
	if tok != "tok-1" {
		return nil, &backend.APIError{Status: http.StatusUnauthorized, Message: "invalid JWT"}
	}
	return &backend.User{ID: "user-1", Email: "donor@example.com"}, nil
}

// ----- helpers -----

func do(e *echo.Echo, method, target, auth string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func ptr[T any](v T) *T { return &v }

func day(s string) *model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func seed() *memDonors {
	return &memDonors{rows: []model.Donor{
		{ID: "0b6d1f3e-0000-4000-8000-000000000001", UserID: ptr("user-1"), Name: "Amina Rahman", Phone: "01711000001", BloodType: "O+", District: "Dhaka", City: "Mirpur", Age: 30, LastDonationDate: day("2025-05-01")},
		{ID: "0b6d1f3e-0000-4000-8000-000000000002", Name: "Babul Hossain", Phone: "01711000002", BloodType: "A-", District: "Sylhet", City: "Zindabazar", Age: 41},
		{ID: "0b6d1f3e-0000-4000-8000-000000000003", Name: "Chandni Akter", Phone: "01711000003", BloodType: "O+", District: "Dhaka", City: "Dhanmondi", Age: 25, LastDonationDate: day("2025-03-15")},
	}}
}

func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
}

func multipartPicture(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(pictureField, "me.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

// ----- tests -----

func TestDonorDirectory(t *testing.T) {
	h := NewDonorHandler(seed())
	e := echo.New()
	e.GET("/v1/donors", h.List)
	e.GET("/v1/donors/:id", h.Get)

	rec := do(e, http.MethodGet, "/v1/donors?blood_type=o%2B&eligibility=eligible", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page donorlist.Page[donorView]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Chandni Akter", page.Items[0].Name)
	assert.True(t, page.Items[0].Eligibility.Eligible)
	assert.Equal(t, 1, page.Total)

	rec = do(e, http.MethodGet, "/v1/donors?sort=name&order=desc&page=2&page_size=2", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Amina Rahman", page.Items[0].Name)

	rec = do(e, http.MethodGet, "/v1/donors/0b6d1f3e-0000-4000-8000-000000000001", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var v donorView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.False(t, v.Eligibility.Eligible)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/v1/donors/nope", "", nil).Code)
	rec = do(e, http.MethodGet, "/v1/donors/0b6d1f3e-0000-4000-8000-0000000000ff", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.HasPrefix(decode(t, rec)["error"].(string), "Failed to load donor: "))
}

func TestDirectoryBackendFailure(t *testing.T) {
	e := echo.New()
	e.GET("/v1/donors", NewDonorHandler(&memDonors{err: backend.ErrNotConfigured}).List)
	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodGet, "/v1/donors", "", nil).Code)

	e = echo.New()
	e.GET("/v1/donors", NewDonorHandler(&memDonors{err: &backend.APIError{Status: 500, Message: "boom"}}).List)
	assert.Equal(t, http.StatusBadGateway, do(e, http.MethodGet, "/v1/donors", "", nil).Code)
}

func TestEligibilityEndpoint(t *testing.T) {
	e := echo.New()
	e.GET("/v1/eligibility", NewDonorHandler(seed()).Eligibility)

	m := decode(t, do(e, http.MethodGet, "/v1/eligibility", "", nil))
	assert.Equal(t, true, m["eligible"])

	m = decode(t, do(e, http.MethodGet, "/v1/eligibility?last_donation_date=2025-03-15", "", nil))
	assert.Equal(t, true, m["eligible"])

	m = decode(t, do(e, http.MethodGet, "/v1/eligibility?last_donation_date=2025-03-16", "", nil))
	assert.Equal(t, false, m["eligible"])
	assert.EqualValues(t, 1, m["days_left"])

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/v1/eligibility?last_donation_date=15/03/2025", "", nil).Code)
}

func TestRegister(t *testing.T) {
	donors := &memDonors{}
	events := &recordingEvents{}
	cache := &recordingCache{}
	h := NewAuthHandler(&fakeAuth{withSession: true}, donors, events, cache)
	e := echo.New()
	e.POST("/v1/auth/register", h.Register)

	body := map[string]any{
		"email": " New@Example.com ", "password": "correct-horse", "name": "Dipa Sen",
		"phone": "01711000009", "blood_type": "b+", "district": "Khulna", "city": "Sonadanga", "age": 22,
	}
	rec := do(e, http.MethodPost, "/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	m := decode(t, rec)
	assert.Equal(t, false, m["confirmation_required"])
	donor := m["donor"].(map[string]any)
	assert.Equal(t, "B+", donor["blood_type"])
	assert.Equal(t, "user-1", donor["user_id"])
	assert.Equal(t, "new@example.com", donor["email"])

	require.Len(t, donors.rows, 1)
	assert.Equal(t, []string{"tok-1"}, donors.tokens)
	assert.Equal(t, []string{queue.EventDonorRegistered}, events.types())
	assert.Equal(t, []string{middleware.CacheGroupDonors}, cache.groups)
}

func TestRegisterValidation(t *testing.T) {
	donors := &memDonors{}
	h := NewAuthHandler(&fakeAuth{}, donors, service.NopPublisher{}, nil)
	e := echo.New()
	e.POST("/v1/auth/register", h.Register)

	rec := do(e, http.MethodPost, "/v1/auth/register", "", map[string]any{"email": "a@b.co", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"email": "a@b.co", "password": "long-enough", "name": "X", "phone": "12", "blood_type": "Z", "age": 70,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode(t, rec)["fields"].(map[string]any)
	for _, f := range []string{"phone", "blood_type", "age", "district", "city"} {
		assert.Contains(t, fields, f)
	}
	assert.Empty(t, donors.rows)
}

func TestLoginRefreshLogout(t *testing.T) {
	auth := &fakeAuth{}
	h := NewAuthHandler(auth, &memDonors{}, nil, nil)
	e := echo.New()
	e.POST("/v1/auth/login", h.Login)
	e.POST("/v1/auth/refresh", h.Refresh)
	e.POST("/v1/auth/logout", h.Logout)

	rec := do(e, http.MethodPost, "/v1/auth/login", "", loginReq{Email: "d@example.com", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-1", decode(t, rec)["access_token"])

	rec = do(e, http.MethodPost, "/v1/auth/login", "", loginReq{Email: "d@example.com", Password: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "Failed to log in: ")

	rec = do(e, http.MethodPost, "/v1/auth/refresh", "", refreshReq{RefreshToken: "ref-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ref-1-next", decode(t, rec)["refresh_token"])

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodPost, "/v1/auth/logout", "", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodPost, "/v1/auth/logout", "Bearer tok-1", nil).Code)
	assert.Equal(t, []string{"tok-1"}, auth.signedOut)
}

func newProfileEcho(donors *memDonors, objects *fakeObjects, events *recordingEvents) *echo.Echo {
	h := NewProfileHandler(donors, Pictures{Store: objects, Bucket: "profile-pictures", MaxBytes: 1024}, events, nil)
	a := NewAuthHandler(&fakeAuth{}, donors, events, nil)
	e := echo.New()
	g := e.Group("/v1", middleware.UserAuth(stubUsers{}))
	g.GET("/me", a.Me)
	g.GET("/profile", h.Get)
	g.PUT("/profile", h.Update)
	g.DELETE("/profile", h.Delete)
	g.POST("/profile/picture", h.UploadPicture)
	g.POST("/profile/donations", h.RecordDonation)
	return e
}

func TestProfile(t *testing.T) {
	donors := seed()
	events := &recordingEvents{}
	e := newProfileEcho(donors, &fakeObjects{}, events)

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/v1/profile", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/v1/profile", "Bearer stale", nil).Code)

	rec := do(e, http.MethodGet, "/v1/profile", "Bearer tok-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Amina Rahman", decode(t, rec)["name"])
	assert.Equal(t, "tok-1", donors.tokens[len(donors.tokens)-1])

	me := decode(t, do(e, http.MethodGet, "/v1/me", "Bearer tok-1", nil))
	assert.Equal(t, "Amina Rahman", me["donor"].(map[string]any)["name"])

	rec = do(e, http.MethodPut, "/v1/profile", "Bearer tok-1", map[string]any{"city": " Uttara ", "age": 31})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Uttara", decode(t, rec)["city"])

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPut, "/v1/profile", "Bearer tok-1", map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPut, "/v1/profile", "Bearer tok-1", map[string]any{"age": 12}).Code)

	rec = do(e, http.MethodPost, "/v1/profile/donations", "Bearer tok-1", map[string]any{"donation_date": "2025-06-10"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-06-10", decode(t, rec)["last_donation_date"])

	rec = do(e, http.MethodPost, "/v1/profile/donations", "Bearer tok-1", map[string]any{"donation_date": "2025-06-16"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/v1/profile/donations", "Bearer tok-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-06-15", decode(t, rec)["last_donation_date"])

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/v1/profile", "Bearer tok-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/v1/profile", "Bearer tok-1", nil).Code)

	me = decode(t, do(e, http.MethodGet, "/v1/me", "Bearer tok-1", nil))
	assert.Nil(t, me["donor"])

	assert.Equal(t, []string{
		queue.EventDonorUpdated, queue.EventDonationRecorded, queue.EventDonationRecorded, queue.EventDonorDeleted,
	}, events.types())
}

func TestProfilePicture(t *testing.T) {
	donors := seed()
	donors.rows[0].ProfilePictureURL = ptr("https://cdn.example.com/profile-pictures/old/pic.jpg")
	objects := &fakeObjects{}
	e := newProfileEcho(donors, objects, &recordingEvents{})

	body, ct := multipartPicture(t, pngBytes())
	req := httptest.NewRequest(http.MethodPost, "/v1/profile/picture", body)
	req.Header.Set(echo.HeaderContentType, ct)
	req.Header.Set(echo.HeaderAuthorization, "Bearer tok-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, objects.uploaded, 1)
	var path string
	for p, b := range objects.uploaded {
		path = p
		assert.Equal(t, pngBytes(), b)
	}
	assert.True(t, strings.HasPrefix(path, donors.rows[0].ID+"/"))
	assert.True(t, strings.HasSuffix(path, ".png"))
	assert.Equal(t, "https://cdn.example.com/profile-pictures/"+path, decode(t, rec)["profile_picture_url"])
	assert.Equal(t, []string{"old/pic.jpg"}, objects.removed)

	body, ct = multipartPicture(t, []byte("plain text, not an image"))
	req = httptest.NewRequest(http.MethodPost, "/v1/profile/picture", body)
	req.Header.Set(echo.HeaderContentType, ct)
	req.Header.Set(echo.HeaderAuthorization, "Bearer tok-1")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), utils.ErrUnsupportedImage.Error())

	body, ct = multipartPicture(t, append(pngBytes(), bytes.Repeat([]byte{1}, 2048)...))
	req = httptest.NewRequest(http.MethodPost, "/v1/profile/picture", body)
	req.Header.Set(echo.HeaderContentType, ct)
	req.Header.Set(echo.HeaderAuthorization, "Bearer tok-1")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

type fakeAdmins struct{}

func (fakeAdmins) Verify(_ context.Context, email, password string) (*model.Admin, error) {
	if email == "admin@example.com" && password == "s3cret-pass" {
		return &model.Admin{ID: "adm-1", Email: email, Name: "Ops", Role: "admin"}, nil
	}
	return nil, repository.ErrInvalidCredentials
}

type memNotifications struct{ rows []model.Notification }

func (m *memNotifications) ListRecent(_ context.Context, limit int, unreadOnly bool) ([]model.Notification, error) {
	out := []model.Notification{}
	for _, n := range m.rows {
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *memNotifications) MarkRead(_ context.Context, id string) (*model.Notification, error) {
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].IsRead = true
			n := m.rows[i]
			return &n, nil
		}
	}
	return nil, repository.ErrNotificationNotFound
}

type memRequests struct{ rows []model.BloodRequest }

func (m *memRequests) Create(_ context.Context, in model.BloodRequestInput) (*model.BloodRequest, error) {
	r := model.BloodRequest{ID: uuid.NewString(), PatientName: in.PatientName, BloodType: model.BloodType(in.BloodType),
		Units: in.Units, Hospital: in.Hospital, District: in.District, ContactPhone: in.ContactPhone, Status: model.RequestOpen}
	m.rows = append(m.rows, r)
	return &r, nil
}

func (m *memRequests) List(_ context.Context, status, bloodType string, _ int) ([]model.BloodRequest, error) {
	out := []model.BloodRequest{}
	for _, r := range m.rows {
		if (status == "" || r.Status == status) && (bloodType == "" || string(r.BloodType) == bloodType) {
			out = append(out, r)
		}
	}
	return out, nil
}

const adminSecret = "test-secret"

func newAdminEcho(donors *memDonors, events *recordingEvents) (*echo.Echo, *AdminHandler) {
	h := &AdminHandler{
		Admins:        fakeAdmins{},
		Guard:         service.NewLoginGuard(3, 15*time.Minute),
		Donors:        donors,
		Notifications: &memNotifications{rows: []model.Notification{{ID: "n1", Title: "New donor"}, {ID: "n2", IsRead: true}}},
		Requests:      &memRequests{},
		Secret:        adminSecret,
		TTL:           24 * time.Hour,
	}
	ad := NewAdminDonorHandler(donors, Pictures{Store: &fakeObjects{}, Bucket: "profile-pictures"}, events, nil)

	e := echo.New()
	e.POST("/v1/admin/login", h.Login)
	g := e.Group("/v1/admin", middleware.AdminAuth(adminSecret, clock), middleware.RequireRole("admin"))
	g.GET("/session", h.Session)
	g.GET("/stats", h.Stats)
	g.GET("/notifications", h.ListNotifications)
	g.PATCH("/notifications/:id/read", h.MarkNotificationRead)
	g.GET("/donors", ad.List)
	g.POST("/donors", ad.Create)
	g.GET("/donors/:id", ad.Get)
	g.PUT("/donors/:id", ad.Update)
	g.DELETE("/donors/:id", ad.Delete)
	g.POST("/donors/:id/donations", ad.RecordDonation)
	return e, h
}

func adminToken(t *testing.T, e *echo.Echo) string {
	t.Helper()
	rec := do(e, http.MethodPost, "/v1/admin/login", "", loginReq{Email: "Admin@Example.com", Password: "s3cret-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok, _ := decode(t, rec)["token"].(string)
	require.NotEmpty(t, tok)
	return "Bearer " + tok
}

func TestAdminLoginLockout(t *testing.T) {
	e, _ := newAdminEcho(seed(), &recordingEvents{})
	bad := loginReq{Email: "admin@example.com", Password: "wrong"}

	rec := do(e, http.MethodPost, "/v1/admin/login", "", bad)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["attempts_left"])
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodPost, "/v1/admin/login", "", bad).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodPost, "/v1/admin/login", "", bad).Code)

	// the correct password is refused while locked
	rec = do(e, http.MethodPost, "/v1/admin/login", "", loginReq{Email: "admin@example.com", Password: "s3cret-pass"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "900", rec.Header().Get(echo.HeaderRetryAfter))
}

func TestAdminLoginLockoutDefaults(t *testing.T) {
	e, h := newAdminEcho(seed(), &recordingEvents{})
	h.Guard = service.NewLoginGuard(0, 0)
	bad := loginReq{Email: "admin@example.com", Password: "wrong"}

	for left := 4; left > 0; left-- {
		rec := do(e, http.MethodPost, "/v1/admin/login", "", bad)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.EqualValues(t, left, decode(t, rec)["attempts_left"])
	}
	rec := do(e, http.MethodPost, "/v1/admin/login", "", bad)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "900", rec.Header().Get(echo.HeaderRetryAfter))

	rec = do(e, http.MethodPost, "/v1/admin/login", "", loginReq{Email: "admin@example.com", Password: "s3cret-pass"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAdminLockoutIgnoresForwardedFor(t *testing.T) {
	e, _ := newAdminEcho(seed(), &recordingEvents{})
	e.IPExtractor = echo.ExtractIPDirect()

	login := func(password, forwardedFor string) int {
		b, _ := json.Marshal(loginReq{Email: "admin@example.com", Password: password})
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/login", bytes.NewReader(b))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderXForwardedFor, forwardedFor)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, login("wrong", "203.0.113.1"))
	assert.Equal(t, http.StatusUnauthorized, login("wrong", "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, login("wrong", "203.0.113.3"))
	assert.Equal(t, http.StatusTooManyRequests, login("s3cret-pass", "198.51.100.7"))
}

func TestAdminSessionAndDashboard(t *testing.T) {
	e, _ := newAdminEcho(seed(), &recordingEvents{})
	tok := adminToken(t, e)

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/v1/admin/session", "", nil).Code)

	s := decode(t, do(e, http.MethodGet, "/v1/admin/session", tok, nil))
	assert.Equal(t, "admin@example.com", s["email"])

	st := decode(t, do(e, http.MethodGet, "/v1/admin/stats", tok, nil))
	assert.EqualValues(t, 3, st["total"])

	list := decode(t, do(e, http.MethodGet, "/v1/admin/notifications?unread=true", tok, nil))
	assert.Len(t, list["items"], 1)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPatch, "/v1/admin/notifications/n1/read", tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodPatch, "/v1/admin/notifications/zz/read", tok, nil).Code)
}

func TestAdminDonorSearch(t *testing.T) {
	donors := seed()
	e, _ := newAdminEcho(donors, &recordingEvents{})
	tok := adminToken(t, e)

	list := func(query string) donorlist.Page[donorView] {
		t.Helper()
		var page donorlist.Page[donorView]
		rec := do(e, http.MethodGet, "/v1/admin/donors?"+query, tok, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		return page
	}

	byPhone := list("search=01711000003")
	require.Len(t, byPhone.Items, 1)
	assert.Equal(t, "Chandni Akter", byPhone.Items[0].Name)
	require.Len(t, donors.searches, 1)
	assert.Equal(t, "01711000003", donors.searches[0].Search)

	partial := list("district=Dhak")
	assert.Empty(t, partial.Items)
	assert.Equal(t, 0, partial.Total)

	assert.Equal(t, 2, list("district=Dhaka").Total)
	assert.Len(t, donors.searches, 3)

	// sorting runs the in-memory pipeline instead of the backend
	sorted := list("sort=name&order=desc")
	require.Len(t, sorted.Items, 3)
	assert.Equal(t, "Chandni Akter", sorted.Items[0].Name)
	assert.Len(t, donors.searches, 3)

	huge := list("page=9223372036854775807&page_size=100")
	assert.Empty(t, huge.Items)
	assert.Equal(t, 3, huge.Total)
}

func TestAdminDonorCRUD(t *testing.T) {
	donors := seed()
	events := &recordingEvents{}
	e, _ := newAdminEcho(donors, events)
	tok := adminToken(t, e)

	var page donorlist.Page[donorView]
	rec := do(e, http.MethodGet, "/v1/admin/donors?district=Dhaka&sort=age", tok, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, 25, page.Items[0].Age)

	rec = do(e, http.MethodGet, "/v1/admin/donors?eligibility=not_eligible", tok, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Amina Rahman", page.Items[0].Name)

	rec = do(e, http.MethodPost, "/v1/admin/donors", tok, map[string]any{
		"name": "Emon Ali", "phone": "01711000010", "blood_type": "AB-", "district": "Rajshahi", "city": "Boalia", "age": 50,
		"last_donation_date": "2025-01-02",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	id := created["id"].(string)
	assert.Nil(t, created["user_id"])

	rec = do(e, http.MethodPut, "/v1/admin/donors/"+id, tok, map[string]any{"name": "Emon Ali Khan"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Emon Ali Khan", decode(t, rec)["name"])

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/v1/admin/donors/"+id+"/donations", tok, nil).Code)
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/v1/admin/donors/"+id, tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/v1/admin/donors/"+id, tok, nil).Code)

	require.Len(t, events.events, 4)
	for _, ev := range events.events {
		assert.Equal(t, "admin:admin@example.com", ev.Actor)
	}
	got := events.types()
	sort.Strings(got)
	assert.Equal(t, []string{queue.EventDonationRecorded, queue.EventDonorDeleted, queue.EventDonorRegistered, queue.EventDonorUpdated}, got)
}

type memContent struct {
	hero       *model.HeroSettings
	guidelines *model.Guidelines
}

func (m *memContent) GetHero(context.Context) (*model.HeroSettings, error) {
	if m.hero == nil {
		return nil, repository.ErrContentNotFound
	}
	return m.hero, nil
}

func (m *memContent) SaveHero(_ context.Context, in repository.HeroInput) (*model.HeroSettings, error) {
	m.hero = &model.HeroSettings{ID: "hero", Title: in.Title, Subtitle: in.Subtitle, ButtonText: in.ButtonText, ImageURL: in.ImageURL}
	return m.hero, nil
}

func (m *memContent) GetGuidelines(context.Context) (*model.Guidelines, error) {
	if m.guidelines == nil {
		return nil, repository.ErrContentNotFound
	}
	return m.guidelines, nil
}

func (m *memContent) SaveGuidelines(_ context.Context, content string) (*model.Guidelines, error) {
	m.guidelines = &model.Guidelines{ID: "g", Content: content}
	return m.guidelines, nil
}

func TestContent(t *testing.T) {
	cache := &recordingCache{}
	h := NewContentHandler(&memContent{}, cache)
	e := echo.New()
	e.GET("/hero", h.GetHero)
	e.PUT("/hero", h.SaveHero)
	e.GET("/guidelines", h.GetGuidelines)
	e.PUT("/guidelines", h.SaveGuidelines)

	assert.Equal(t, defaultHero.Title, decode(t, do(e, http.MethodGet, "/hero", "", nil))["title"])
	assert.Equal(t, defaultGuidelines.Content, decode(t, do(e, http.MethodGet, "/guidelines", "", nil))["content"])

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPut, "/hero", "", map[string]any{"title": " "}).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPut, "/hero", "", map[string]any{
		"title": "T", "button_text": "Go", "image_url": "javascript:alert(1)",
	}).Code)

	rec := do(e, http.MethodPut, "/hero", "", map[string]any{"title": "Give blood", "button_text": "Join", "image_url": "https://img.example.com/a.jpg"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Give blood", decode(t, do(e, http.MethodGet, "/hero", "", nil))["title"])

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPut, "/guidelines", "", map[string]any{"content": ""}).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPut, "/guidelines", "", map[string]any{"content": "Eat well."}).Code)
	assert.Equal(t, []string{middleware.CacheGroupContent, middleware.CacheGroupContent}, cache.groups)
}

func TestBloodRequests(t *testing.T) {
	store := &memRequests{}
	h := NewBloodRequestHandler(store)
	e := echo.New()
	e.POST("/v1/blood-requests", h.Create)
	e.GET("/v1/blood-requests", h.Open)

	rec := do(e, http.MethodPost, "/v1/blood-requests", "", map[string]any{"patient_name": "R", "blood_type": "o-", "units": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/v1/blood-requests", "", map[string]any{
		"patient_name": "Rahim", "blood_type": "o-", "units": 2, "hospital": "DMCH", "district": "Dhaka", "contact_phone": "01711000011",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "O-", decode(t, rec)["blood_type"])

	list := decode(t, do(e, http.MethodGet, "/v1/blood-requests?blood_type=O-", "", nil))
	assert.Len(t, list["items"], 1)
}

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/healthz", Health(func() bool { return false }))
	m := decode(t, do(e, http.MethodGet, "/healthz", "", nil))
	assert.Equal(t, "ok", m["status"])
	assert.Equal(t, false, m["backend_configured"])
}
