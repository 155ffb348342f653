package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliRun struct {
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, stdin string, args ...string) cliRun {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(strings.NewReader(stdin), &stdout, &stderr)
	err := app.Run(append([]string{appName}, args...))
	return cliRun{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestLoginWhoamiLogout(t *testing.T) {
	dir := t.TempDir()
	global := []string{"--mock", "--no-color", "--state-dir", dir}

	res := run(t, "", append(global, "login", "--id", "1234567890", "--code", "123456")...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "[mock] code 123456 sent via sms")
	assert.Contains(t, res.stdout, "(patient)")
	assert.Contains(t, res.stdout, "patient_home")

	res = run(t, "", append(global, "whoami", "--json")...)
	require.NoError(t, res.err, res.stderr)
	var who whoami
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &who))
	assert.Equal(t, "patient", string(who.Role))
	assert.Equal(t, "p-100", who.SubjectID)
	assert.NotNil(t, who.ExpiresAt)

	res = run(t, "", append(global, "logout")...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Signed out.")

	res = run(t, "", append(global, "whoami")...)
	assert.EqualError(t, res.err, "not signed in")
}

func TestLoginPromptsUntilCodeAccepted(t *testing.T) {
	dir := t.TempDir()
	res := run(t, "000000\n123456\n",
		"--mock", "--no-color", "--state-dir", dir,
		"login", "--role", "provider", "--id", "DrHouse", "--channel", "email")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Code sent via email: ")
	assert.Contains(t, res.stdout, "That code was not accepted.")
	assert.Contains(t, res.stdout, "provider_dashboard")
}

func TestLoginUnknownPatientSuggestsRegister(t *testing.T) {
	res := run(t, "", "--mock", "--state-dir", t.TempDir(), "login", "--id", "0000000000")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "register patient")
}

func TestRegisterPatientWithSealedFile(t *testing.T) {
	dir := t.TempDir()
	res := run(t, "",
		"--mock", "--state-dir", dir, "--seal-secret", "a-long-enough-test-secret",
		"register", "patient",
		"--health-card", "9876543210", "--clinic", "c-2",
		"--first-name", "Mary", "--last-name", "Seacole",
		"--dob", "1990-04-12", "--sex", "F",
		"--email", "mary@example.org", "--phone", "555-123-4567",
		"--code", "123456",
	)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "(patient)")

	raw, err := os.ReadFile(filepath.Join(dir, "clinic-auth-session.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "accessToken")

	res = run(t, "", "--mock", "--state-dir", dir, "--seal-secret", "a-long-enough-test-secret", "whoami")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Mary")
}

func TestRegisterExistingAdminRefused(t *testing.T) {
	res := run(t, "",
		"--mock", "--state-dir", t.TempDir(),
		"register", "admin",
		"--username", "Admin", "--first-name", "G", "--last-name", "H",
		"--email", "g@example.org", "--phone", "5550100199",
	)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "already has an account")
}

func TestSQLiteStorageAndMetrics(t *testing.T) {
	db := filepath.Join(t.TempDir(), "session.db")
	res := run(t, "", "--mock", "--sqlite", db, "--print-metrics",
		"login", "--role", "admin", "--id", "admin", "--code", "123456")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "admin_dashboard")
	assert.Contains(t, res.stdout, "clinicauth_verify_success_total 1")
	assert.Contains(t, res.stdout, "clinicauth_request_latency_seconds_bucket")

	res = run(t, "", "--mock", "--sqlite", db, "whoami", "--json")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, `"role": "admin"`)
}

func TestClinicsTable(t *testing.T) {
	res := run(t, "", "--mock", "--state-dir", t.TempDir(), "clinics")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Downtown Family Clinic")
	assert.Contains(t, res.stdout, "c-2")
}

func TestMissingBaseURL(t *testing.T) {
	res := run(t, "", "--state-dir", t.TempDir(), "clinics")
	assert.EqualError(t, res.err, "set --base-url or --mock")
}
