package fakeapi

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	clinicmw "github.com/MrEthical07/clinicAuth/middleware"
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

func validChannel(ch string) bool {
	return ch == "sms" || ch == "email"
}

func (s *Server) handlePatientLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HealthCardNumber string `json:"healthCardNumber"`
		OTPChannel       string `json:"otpChannel"`
	}
	if err := decodeBody(r, &req); err != nil || req.HealthCardNumber == "" || !validChannel(req.OTPChannel) {
		writeMessage(w, http.StatusBadRequest, "healthCardNumber and otpChannel are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[req.HealthCardNumber]
	if !ok {
		writeMessage(w, http.StatusForbidden, "access denied")
		return
	}
	s.dispatchLocked(p.ID, req.OTPChannel)
	writeData(w, http.StatusOK, map[string]string{"id": p.ID})
}

func (s *Server) handlePatientRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Patient
		OTPChannel string `json:"otpChannel"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}
	p := req.Patient
	if p.HealthCardNumber == "" || p.ClinicID == "" || p.FirstName == "" || p.LastName == "" ||
		p.DateOfBirth == "" || p.Sex == "" || p.Email == "" || p.Phone == "" || !validChannel(req.OTPChannel) {
		writeMessage(w, http.StatusUnprocessableEntity, "missing registration fields")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.patients[p.HealthCardNumber]; exists {
		writeMessage(w, http.StatusConflict, "patient already registered")
		return
	}
	p.ID = s.newIDLocked("p")
	s.patients[p.HealthCardNumber] = &p
	s.byID[p.ID] = "patient"
	s.dispatchLocked(p.ID, req.OTPChannel)
	writeData(w, http.StatusCreated, map[string]string{"uid": p.ID})
}

func (s *Server) handleVerifyPatient(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	var req struct {
		AccessCode string `json:"accessCode"`
		OTPChannel string `json:"otpChannel"`
	}
	if err := decodeBody(r, &req); err != nil || !codePattern.MatchString(req.AccessCode) {
		writeMessage(w, http.StatusBadRequest, "accessCode must be 6 digits")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ok, expired := s.consumeLocked(uid, req.AccessCode)
	if expired {
		writeMessage(w, http.StatusGone, "access code expired")
		return
	}
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "invalid access code")
		return
	}
	var patient *Patient
	for _, p := range s.patients {
		if p.ID == uid {
			patient = p
			break
		}
	}
	if patient == nil {
		writeMessage(w, http.StatusNotFound, "patient not found")
		return
	}

	token, err := s.cfg.Signer.Issue(patient.ID, "patient")
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"id":               patient.ID,
		"role":             "patient",
		"healthCardNumber": patient.HealthCardNumber,
		"clinicId":         patient.ClinicID,
		"firstName":        patient.FirstName,
		"lastName":         patient.LastName,
		"email":            patient.Email,
		"phone":            patient.Phone,
		"accessToken":      token,
	})
}

func (s *Server) handleStaffLogin(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username   string `json:"username"`
			OTPChannel string `json:"otpChannel"`
		}
		if err := decodeBody(r, &req); err != nil || req.Username == "" || !validChannel(req.OTPChannel) {
			writeMessage(w, http.StatusBadRequest, "username and otpChannel are required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		st, ok := s.staffLocked(role)[strings.ToLower(req.Username)]
		if !ok {
			writeMessage(w, http.StatusNotFound, role+" not found")
			return
		}
		s.dispatchLocked(st.ID, req.OTPChannel)
		writeData(w, http.StatusOK, map[string]string{"id": st.ID})
	}
}

func (s *Server) handleVerifyStaff(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID         string `json:"id"`
			AccessCode string `json:"accessCode"`
			OTPChannel string `json:"otpChannel"`
		}
		if err := decodeBody(r, &req); err != nil || req.ID == "" || !codePattern.MatchString(req.AccessCode) {
			writeMessage(w, http.StatusBadRequest, "id and 6 digit accessCode are required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		ok, expired := s.consumeLocked(req.ID, req.AccessCode)
		if expired {
			writeMessage(w, http.StatusGone, "access code expired")
			return
		}
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "invalid access code")
			return
		}
		var st *Staff
		for _, candidate := range s.staffLocked(role) {
			if candidate.ID == req.ID {
				st = candidate
				break
			}
		}
		if st == nil {
			writeMessage(w, http.StatusNotFound, role+" not found")
			return
		}

		token, err := s.cfg.Signer.Issue(st.ID, role)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "token issue failed")
			return
		}
		writeData(w, http.StatusOK, map[string]any{
			"id":          st.ID,
			"role":        role,
			"username":    st.Username,
			"firstName":   st.FirstName,
			"lastName":    st.LastName,
			"email":       st.Email,
			"phone":       st.Phone,
			"accessToken": token,
		})
	}
}

func (s *Server) handleAdminRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Staff
		OTPChannel string `json:"otpChannel"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}
	st := req.Staff
	if st.Username == "" || st.Email == "" || st.Phone == "" || !validChannel(req.OTPChannel) {
		writeMessage(w, http.StatusUnprocessableEntity, "missing registration fields")
		return
	}
	st.Username = strings.ToLower(st.Username)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.admins[st.Username]; exists {
		writeMessage(w, http.StatusConflict, "admin already registered")
		return
	}
	st.ID = s.newIDLocked("a")
	s.admins[st.Username] = &st
	s.byID[st.ID] = "admin"
	s.dispatchLocked(st.ID, req.OTPChannel)
	writeData(w, http.StatusCreated, map[string]string{"id": st.ID})
}

func (s *Server) handleClinics(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	clinics := append([]Clinic{}, s.clinics...)
	s.mu.Unlock()
	writeData(w, http.StatusOK, clinics)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := clinicmw.ClaimsFromContext(r.Context())
	s.mu.Lock()
	role, ok := s.byID[claims.Subject]
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unknown subject")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": claims.Subject, "role": role})
}
