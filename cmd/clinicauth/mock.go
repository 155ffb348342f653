package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/MrEthical07/clinicAuth/internal/fakeapi"
	"github.com/MrEthical07/clinicAuth/jwt"
)

const mockSigningSecret = "clinicauth-mock-signing-secret"

// mockBackend is an in-process clinic API seeded with demo accounts. Tokens
// are signed with a fixed secret so sessions survive between invocations.
type mockBackend struct {
	api *fakeapi.Server
	srv *http.Server
	url string
}

func startMock(logger *slog.Logger) (*mockBackend, error) {
	signer, err := jwt.NewSigner(jwt.Config{
		Secret: []byte(mockSigningSecret),
		Issuer: "clinicauth-mock",
		TTL:    12 * time.Hour,
	})
	if err != nil {
		return nil, err
	}
	api, err := fakeapi.New(fakeapi.Config{Signer: signer, Logger: logger.With(slog.String("component", "mock"))})
	if err != nil {
		return nil, err
	}
	seedMock(api)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	m := &mockBackend{
		api: api,
		srv: &http.Server{Handler: api, ReadHeaderTimeout: 5 * time.Second},
		url: "http://" + ln.Addr().String(),
	}
	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("mock server stopped", slog.Any("error", err))
		}
	}()
	return m, nil
}

func seedMock(api *fakeapi.Server) {
	api.AddClinic(fakeapi.Clinic{ID: "c-1", Name: "Downtown Family Clinic", Address: "12 Main St"})
	api.AddClinic(fakeapi.Clinic{ID: "c-2", Name: "Riverside Health"})
	api.AddPatient(fakeapi.Patient{
		ID: "p-100", HealthCardNumber: "1234567890", ClinicID: "c-1",
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.org", Phone: "+15551234567",
	})
	api.AddProvider(fakeapi.Staff{ID: "d-100", Username: "drhouse", FirstName: "Greg", LastName: "House", Email: "house@example.org"})
	api.AddAdmin(fakeapi.Staff{ID: "a-100", Username: "admin", FirstName: "Grace", LastName: "Hopper", Email: "grace@example.org"})
}

// lastCode returns the most recent code the mock sent, for display.
func (m *mockBackend) lastCode() (fakeapi.Dispatch, bool) {
	sent := m.api.Sent()
	if len(sent) == 0 {
		return fakeapi.Dispatch{}, false
	}
	return sent[len(sent)-1], true
}

func (m *mockBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.srv.Shutdown(ctx)
}
