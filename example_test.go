package clinicAuth_test

import (
	"context"
	"errors"
	"os"

	"github.com/redis/go-redis/v9"

	clinicAuth "github.com/MrEthical07/clinicAuth"
	"github.com/MrEthical07/clinicAuth/session"
)

// ExampleNew builds a client that keeps its session in Redis and audits to
// stderr.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := clinicAuth.DefaultConfig()
	cfg.API.BaseURL = "https://api.clinic.example"
	cfg.Audit.Enabled = true

	client, err := clinicAuth.New().
		WithConfig(cfg).
		WithPersister(session.NewRedisPersister(rdb, "clinicauth:"+cfg.Session.StorageName)).
		WithAuditSink(clinicAuth.NewJSONWriterSink(os.Stderr)).
		Build()
	if err != nil {
		return
	}
	defer client.Close()
}

// ExampleClient_Begin walks a patient login from health card to session.
func ExampleClient_Begin() {
	var client *clinicAuth.Client
	ctx := context.Background()

	v, err := client.Begin(clinicAuth.RolePatient)
	if err != nil {
		return
	}
	if err := v.SubmitIdentity(ctx, "1234567890", clinicAuth.ChannelSMS); err != nil {
		return
	}
	if v.State() == clinicAuth.StateBranchNotFound {
		_ = v.BeginRegistration()
		return
	}
	_ = v.ChooseChannel(clinicAuth.ChannelSMS)
	if err := v.Dispatch(ctx); errors.Is(err, clinicAuth.ErrCooldown) {
		_ = v.Remaining()
	}
	if err := v.SubmitCode(ctx, "123456"); errors.Is(err, clinicAuth.ErrCodeRejected) {
		return
	}
	_ = client.Destination()
}

// ExampleClient_MetricsSnapshot reads in-process counters.
func ExampleClient_MetricsSnapshot() {
	var client *clinicAuth.Client
	snapshot := client.MetricsSnapshot()
	_ = snapshot.Counters[clinicAuth.MetricVerifySuccess]
}
