package fakeapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/clinicAuth/jwt"
	clinicmw "github.com/MrEthical07/clinicAuth/middleware"
)

// Patient is a registered patient record.
type Patient struct {
	ID               string `json:"id"`
	HealthCardNumber string `json:"healthCardNumber"`
	ClinicID         string `json:"clinicId"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	DateOfBirth      string `json:"dateOfBirth"`
	Sex              string `json:"sex"`
	Pronouns         string `json:"pronouns,omitempty"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
}

// Staff is a provider or admin account.
type Staff struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Clinic is a directory entry.
type Clinic struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Dispatch records one code the server would have delivered.
type Dispatch struct {
	SubjectRef string
	Channel    string
	Code       string
	At         time.Time
}

type pendingCode struct {
	code      string
	channel   string
	expiresAt time.Time
}

// Config configures a [Server].
type Config struct {
	// Signer issues access tokens. Required.
	Signer *jwt.Signer
	// Code returns the code for a dispatch. Defaults to "123456".
	Code func(subjectRef string) string
	// CodeTTL is how long a dispatched code stays valid.
	CodeTTL time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
}

// Server is the fake clinic API. It is safe for concurrent use.
type Server struct {
	cfg    Config
	router chi.Router

	mu        sync.Mutex
	patients  map[string]*Patient // by health card
	providers map[string]*Staff   // by username
	admins    map[string]*Staff   // by username
	byID      map[string]string   // subject id -> role
	clinics   []Clinic
	codes     map[string]pendingCode
	sent      []Dispatch
	failures  map[string][]int
	calls     map[string]int
	nextID    int
}

// New returns a Server with no accounts.
func New(cfg Config) (*Server, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("fakeapi: signer is required")
	}
	if cfg.Code == nil {
		cfg.Code = func(string) string { return "123456" }
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		cfg:       cfg,
		patients:  make(map[string]*Patient),
		providers: make(map[string]*Staff),
		admins:    make(map[string]*Staff),
		byID:      make(map[string]string),
		codes:     make(map[string]pendingCode),
		failures:  make(map[string][]int),
		calls:     make(map[string]int),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.countCalls)
	r.Use(s.injectFailures)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/patient-register", s.handlePatientRegister)
		r.Post("/patient-login", s.handlePatientLogin)
		r.Post("/access_code_verification_patient/{uid}", s.handleVerifyPatient)
		r.Post("/provider-login", s.handleStaffLogin("provider"))
		r.Post("/verify-verification-code-provider", s.handleVerifyStaff("provider"))
		r.Post("/admin-register", s.handleAdminRegister)
		r.Post("/admin-login", s.handleStaffLogin("admin"))
		r.Post("/verify-access-code-admin", s.handleVerifyStaff("admin"))
	})
	r.Get("/clinics/get-all-clinics", s.handleClinics)

	r.Group(func(r chi.Router) {
		r.Use(clinicmw.Guard(s.cfg.Signer))
		r.Get("/me", s.handleMe)
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddPatient registers a patient directly, bypassing the register endpoint.
func (s *Server) AddPatient(p Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = s.newIDLocked("p")
	}
	s.patients[p.HealthCardNumber] = &p
	s.byID[p.ID] = "patient"
}

// AddProvider registers a provider account.
func (s *Server) AddProvider(st Staff) {
	s.addStaff("provider", st)
}

// AddAdmin registers an admin account.
func (s *Server) AddAdmin(st Staff) {
	s.addStaff("admin", st)
}

func (s *Server) addStaff(role string, st Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == "" {
		st.ID = s.newIDLocked(role[:1])
	}
	st.Username = strings.ToLower(st.Username)
	s.staffLocked(role)[st.Username] = &st
	s.byID[st.ID] = role
}

// AddClinic appends a clinic to the directory.
func (s *Server) AddClinic(c Clinic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clinics = append(s.clinics, c)
}

// FailNext makes the next calls to path answer with the given statuses, one
// per call, before normal handling resumes.
func (s *Server) FailNext(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], statuses...)
}

// Sent returns every code dispatched so far.
func (s *Server) Sent() []Dispatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Dispatch(nil), s.sent...)
}

// LastCode returns the most recent code sent to subjectRef.
func (s *Server) LastCode(subjectRef string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.codes[subjectRef]
	return pc.code, ok
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *Server) staffLocked(role string) map[string]*Staff {
	if role == "admin" {
		return s.admins
	}
	return s.providers
}

func (s *Server) newIDLocked(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *Server) dispatchLocked(subjectRef, channel string) {
	now := s.cfg.Now()
	code := s.cfg.Code(subjectRef)
	s.codes[subjectRef] = pendingCode{code: code, channel: channel, expiresAt: now.Add(s.cfg.CodeTTL)}
	s.sent = append(s.sent, Dispatch{SubjectRef: subjectRef, Channel: channel, Code: code, At: now})
	s.cfg.Logger.Debug("fakeapi code dispatched",
		slog.String("subject", subjectRef),
		slog.String("channel", channel),
	)
}

// consumeLocked checks code for subjectRef and discards it on success.
func (s *Server) consumeLocked(subjectRef, code string) (ok bool, expired bool) {
	pc, found := s.codes[subjectRef]
	if !found || pc.code != code {
		return false, false
	}
	if !s.cfg.Now().Before(pc.expiresAt) {
		delete(s.codes, subjectRef)
		return false, true
	}
	delete(s.codes, subjectRef)
	return true, false
}

func (s *Server) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		queue := s.failures[r.URL.Path]
		status := 0
		if len(queue) > 0 {
			status = queue[0]
			s.failures[r.URL.Path] = queue[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			writeMessage(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"data": data})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16))
	return dec.Decode(dst)
}
