// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
)

// MemoryTokenStore is an in-memory token store keyed by (user, service).
type MemoryTokenStore struct {
	mu      sync.Mutex
	users   map[string]bool
	records map[string]models.TokenFields
	Now     func() time.Time
	GetErr  error
	Updates int
}

func NewMemoryTokenStore(users ...string) *MemoryTokenStore {
	s := &MemoryTokenStore{users: map[string]bool{}, records: map[string]models.TokenFields{}, Now: time.Now}
	for _, u := range users {
		s.users[u] = true
	}
	return s
}

func tokenKey(userID, service string) string { return userID + "#" + service }

func str(s string) *string { return &s }

// Put writes raw projection fields for a user, creating the user.
func (s *MemoryTokenStore) Put(userID, service string, fields models.TokenFields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = true
	s.records[tokenKey(userID, service)] = fields
}

// PutToken stores an access token expiring at expiresAt with an optional refresh token.
func (s *MemoryTokenStore) PutToken(userID, service, access string, expiresAt int64, refresh string) {
	fields := models.TokenFields{AccessToken: str(access), ExpiresAt: str(strconv.FormatInt(expiresAt, 10))}
	if refresh != "" {
		fields.RefreshToken = str(refresh)
	}
	s.Put(userID, service, fields)
}

func (s *MemoryTokenStore) GetTokens(ctx context.Context, userID, service string) (*models.TokenFields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	if !s.users[userID] {
		return nil, nil
	}
	fields := s.records[tokenKey(userID, service)]
	return &fields, nil
}

func (s *MemoryTokenStore) StoreTokens(ctx context.Context, userID string, info models.TokenInfo, service string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users[userID] {
		return fmt.Errorf("user %s does not exist", userID)
	}
	s.records[tokenKey(userID, service)] = models.TokenFields{
		AccessToken:  str(info.AccessToken),
		ExpiresAt:    str(strconv.FormatInt(info.ResolveExpiresAt(s.Now()), 10)),
		RefreshToken: info.RefreshToken,
	}
	return nil
}

func (s *MemoryTokenStore) UpdateToken(ctx context.Context, userID string, info models.TokenInfo, service string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users[userID] {
		return false
	}
	s.Updates++
	fields := s.records[tokenKey(userID, service)]
	fields.AccessToken = str(info.AccessToken)
	fields.ExpiresAt = str(strconv.FormatInt(info.ResolveExpiresAt(s.Now()), 10))
	if info.HasRefreshToken() {
		fields.RefreshToken = info.RefreshToken
	}
	s.records[tokenKey(userID, service)] = fields
	return true
}

// Fields returns a copy of the stored projection.
func (s *MemoryTokenStore) Fields(userID, service string) models.TokenFields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[tokenKey(userID, service)]
}

// MockOAuthProvider is a test double for [services.OAuthProvider].
type MockOAuthProvider struct {
	mu           sync.Mutex
	RefreshFn    func(refreshToken string) (*models.TokenInfo, error)
	RefreshCalls []string
}

func (m *MockOAuthProvider) Name() string { return "mock" }

func (m *MockOAuthProvider) Refresh(ctx context.Context, refreshToken string) (*models.TokenInfo, error) {
	m.mu.Lock()
	m.RefreshCalls = append(m.RefreshCalls, refreshToken)
	m.mu.Unlock()
	if m.RefreshFn == nil {
		return nil, errors.New("refresh not configured")
	}
	return m.RefreshFn(refreshToken)
}

// MockAuthCodeProvider is a test double for [services.AuthCodeProvider].
type MockAuthCodeProvider struct {
	MockOAuthProvider
	ExchangeFn func(code string) (*models.TokenInfo, error)
}

func (m *MockAuthCodeProvider) AuthorizeURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + state
}

func (m *MockAuthCodeProvider) Exchange(ctx context.Context, code string) (*models.TokenInfo, error) {
	if m.ExchangeFn == nil {
		return nil, errors.New("exchange not configured")
	}
	return m.ExchangeFn(code)
}

// MockDeviceCodeProvider is a test double for [services.DeviceCodeProvider].
type MockDeviceCodeProvider struct {
	MockOAuthProvider
	Code    *models.DeviceCode
	CodeErr error
	PollFn  func(deviceCode string) (*models.DevicePollResult, error)
	Polls   int
}

func (m *MockDeviceCodeProvider) DeviceCode(ctx context.Context) (*models.DeviceCode, error) {
	return m.Code, m.CodeErr
}

func (m *MockDeviceCodeProvider) PollDeviceCode(ctx context.Context, deviceCode string) (*models.DevicePollResult, error) {
	m.Polls++
	if m.PollFn == nil {
		return &models.DevicePollResult{Status: models.DevicePollPending}, nil
	}
	return m.PollFn(deviceCode)
}

// MockSourceCatalog serves fixed playlists and track listings.
type MockSourceCatalog struct {
	Playlists []models.Playlist
	ListErr   error
	Tracks    map[string]models.PlaylistData
	TrackErrs map[string]error
	Fetched   []string
}

func (m *MockSourceCatalog) ListPlaylists(ctx context.Context, token string) ([]models.Playlist, error) {
	return m.Playlists, m.ListErr
}

func (m *MockSourceCatalog) PlaylistTracks(ctx context.Context, token, playlistID string) (string, []models.TrackDescriptor, error) {
	m.Fetched = append(m.Fetched, playlistID)
	if err := m.TrackErrs[playlistID]; err != nil {
		return "", nil, err
	}
	data, ok := m.Tracks[playlistID]
	if !ok {
		return "", nil, fmt.Errorf("playlist %s not found", playlistID)
	}
	return data.PlaylistName, data.Tracks, nil
}

// MockDestinationCatalog records calls and answers from configured tables.
//
// Search returns Results[query] (nothing when absent). Errors are keyed by playlist
// name (CreateErrs), query (SearchErrs) and item id (AddErrs).
type MockDestinationCatalog struct {
	mu         sync.Mutex
	Results    map[string][]models.SearchResult
	CreateErrs map[string]error
	SearchErrs map[string]error
	AddErrs    map[string]error

	Created  []string
	Searches []string
	Filters  []string
	Limits   []int
	Added    map[string][]string
	Tokens   []string
}

func (m *MockDestinationCatalog) CreatePlaylist(ctx context.Context, token, name, description string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tokens = append(m.Tokens, token)
	if err := m.CreateErrs[name]; err != nil {
		return "", err
	}
	m.Created = append(m.Created, name)
	return fmt.Sprintf("dest-%d", len(m.Created)), nil
}

func (m *MockDestinationCatalog) Search(ctx context.Context, token, query, filter string, limit int) ([]models.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Searches = append(m.Searches, query)
	m.Filters = append(m.Filters, filter)
	m.Limits = append(m.Limits, limit)
	if err := m.SearchErrs[query]; err != nil {
		return nil, err
	}
	return m.Results[query], nil
}

func (m *MockDestinationCatalog) AddItems(ctx context.Context, token, playlistID string, itemIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range itemIDs {
		if err := m.AddErrs[id]; err != nil {
			return err
		}
	}
	if m.Added == nil {
		m.Added = map[string][]string{}
	}
	m.Added[playlistID] = append(m.Added[playlistID], itemIDs...)
	return nil
}

// AddCalls counts items added across all playlists.
func (m *MockDestinationCatalog) AddCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ids := range m.Added {
		n += len(ids)
	}
	return n
}

// MemoryTransferStore keeps transfer records in memory and counts saves.
type MemoryTransferStore struct {
	mu      sync.Mutex
	records map[string]models.TransferRecord
	SaveErr error
	GetErr  error
	Saves   int
}

func NewMemoryTransferStore() *MemoryTransferStore {
	return &MemoryTransferStore{records: map[string]models.TransferRecord{}}
}

func (s *MemoryTransferStore) Save(ctx context.Context, rec *models.TransferRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	s.Saves++
	s.records[rec.TransferID] = clone(*rec)
	return nil
}

func (s *MemoryTransferStore) Get(ctx context.Context, transferID string) (*models.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	rec, ok := s.records[transferID]
	if !ok {
		return nil, nil
	}
	c := clone(rec)
	return &c, nil
}

func (s *MemoryTransferStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.TransferRecord{}
	for _, rec := range s.records {
		if rec.UserID == userID {
			c := clone(rec)
			out = append(out, &c)
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *MemoryTransferStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func clone(rec models.TransferRecord) models.TransferRecord {
	rec.Playlists = append([]models.PlaylistTransferInfo{}, rec.Playlists...)
	return rec
}

// MemoryUserStore keeps users in memory, in insertion order.
type MemoryUserStore struct {
	mu      sync.Mutex
	users   map[string]*models.User
	order   []string
	nextID  int
	ListErr error
}

func NewMemoryUserStore(users ...*models.User) *MemoryUserStore {
	s := &MemoryUserStore{users: map[string]*models.User{}}
	for _, u := range users {
		_ = s.Create(context.Background(), u)
	}
	return s
}

func (s *MemoryUserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID() == "" {
		s.nextID++
		user.SetID(fmt.Sprintf("user-%d", s.nextID))
	}
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if _, ok := s.users[user.ID()]; ok {
		return fmt.Errorf("%w: user %s exists", shared.ErrPersistence, user.ID())
	}
	c := *user
	s.users[user.ID()] = &c
	s.order = append(s.order, user.ID())
	return nil
}

func (s *MemoryUserStore) Get(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}
	c := *u
	return &c, nil
}

func (s *MemoryUserStore) Update(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID()]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, user.ID())
	}
	c := *user
	s.users[user.ID()] = &c
	return nil
}

func (s *MemoryUserStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}
	delete(s.users, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List supports the "email" criterion.
func (s *MemoryUserStore) List(ctx context.Context, criteria map[string]any) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	email, _ := criteria["email"].(string)
	out := []*models.User{}
	for _, id := range s.order {
		u := s.users[id]
		if email != "" && u.Email() != email {
			continue
		}
		c := *u
		out = append(out, &c)
	}
	return out, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
