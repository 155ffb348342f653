package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	clinicAuth "github.com/MrEthical07/clinicAuth"
)

func codeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "channel", Value: "sms", Usage: "sms or email"},
		&cli.StringFlag{Name: "code", Usage: "one-time code; prompted for when empty"},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in with a health-card number or staff username",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "role", Value: "patient", Usage: "patient, provider or admin"},
			&cli.StringFlag{Name: "id", Required: true, Usage: "health-card number (patients) or username (staff)"},
		}, codeFlags()...),
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			role, err := parseRole(c.String("role"))
			if err != nil {
				return err
			}
			ch, err := parseChannel(c.String("channel"))
			if err != nil {
				return err
			}
			ctx := c.Context

			v, err := rt.client.Begin(role)
			if err != nil {
				return err
			}
			if err := v.SubmitIdentity(ctx, c.String("id"), ch); err != nil {
				return err
			}
			if v.State() == clinicAuth.StateBranchNotFound {
				if role == clinicAuth.RoleProvider {
					return fmt.Errorf("no provider account for %q", c.String("id"))
				}
				return fmt.Errorf("no %s account for %q; run %s register %s", role, c.String("id"), appName, role)
			}
			if err := v.ChooseChannel(ch); err != nil {
				return err
			}
			if err := v.Dispatch(ctx); err != nil {
				return err
			}
			if err := rt.enterCode(ctx, v, c.String("code")); err != nil {
				return err
			}
			rt.reportSignedIn()
			return nil
		}),
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account and sign in",
		Subcommands: []*cli.Command{
			{
				Name:  "patient",
				Usage: "Register a patient by health-card number",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "health-card", Required: true},
					&cli.StringFlag{Name: "clinic", Required: true, Usage: "clinic id; see the clinics command"},
					&cli.StringFlag{Name: "first-name", Required: true},
					&cli.StringFlag{Name: "last-name", Required: true},
					&cli.StringFlag{Name: "dob", Required: true, Usage: "date of birth, YYYY-MM-DD"},
					&cli.StringFlag{Name: "sex", Required: true},
					&cli.StringFlag{Name: "pronouns"},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "phone", Required: true},
				}, codeFlags()...),
				Action: withRuntime(registerPatient),
			},
			{
				Name:  "admin",
				Usage: "Register a clinic admin",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "first-name", Required: true},
					&cli.StringFlag{Name: "last-name", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "phone", Required: true},
				}, codeFlags()...),
				Action: withRuntime(registerAdmin),
			},
		},
	}
}

func registerPatient(c *cli.Context, rt *runtime) error {
	ch, err := parseChannel(c.String("channel"))
	if err != nil {
		return err
	}
	ctx := c.Context
	card := c.String("health-card")

	draft := clinicAuth.NewRegistrationDraft(card)
	if err := draft.SetIdentity(clinicAuth.PatientIdentity{HealthCardNumber: card, ClinicID: c.String("clinic")}); err != nil {
		return err
	}
	if err := draft.SetDetails(clinicAuth.PatientDetails{
		FirstName:   c.String("first-name"),
		LastName:    c.String("last-name"),
		DateOfBirth: c.String("dob"),
		Sex:         c.String("sex"),
		Pronouns:    c.String("pronouns"),
	}); err != nil {
		return err
	}
	if err := draft.SetContact(clinicAuth.PatientContact{Email: c.String("email"), Phone: c.String("phone"), Channel: ch}); err != nil {
		return err
	}

	v, err := openRegistration(c, rt, clinicAuth.RolePatient, card, ch)
	if err != nil {
		return err
	}
	if err := v.SubmitRegistration(ctx, draft); err != nil {
		return err
	}
	if err := rt.enterCode(ctx, v, c.String("code")); err != nil {
		return err
	}
	rt.reportSignedIn()
	return nil
}

func registerAdmin(c *cli.Context, rt *runtime) error {
	ch, err := parseChannel(c.String("channel"))
	if err != nil {
		return err
	}
	ctx := c.Context

	draft := &clinicAuth.AdminRegistrationDraft{
		Username:   c.String("username"),
		FirstName:  c.String("first-name"),
		LastName:   c.String("last-name"),
		Email:      c.String("email"),
		Phone:      c.String("phone"),
		OTPChannel: ch,
	}
	if err := draft.Validate(); err != nil {
		return err
	}

	v, err := openRegistration(c, rt, clinicAuth.RoleAdmin, draft.LookupKey(), ch)
	if err != nil {
		return err
	}
	if err := v.SubmitRegistration(ctx, draft); err != nil {
		return err
	}
	if err := rt.enterCode(ctx, v, c.String("code")); err != nil {
		return err
	}
	rt.reportSignedIn()
	return nil
}

// openRegistration looks the identity up first; registration only opens for
// an identity the server does not know.
func openRegistration(c *cli.Context, rt *runtime, role clinicAuth.Role, key string, ch clinicAuth.Channel) (*clinicAuth.Verification, error) {
	v, err := rt.client.Begin(role)
	if err != nil {
		return nil, err
	}
	if err := v.SubmitIdentity(c.Context, key, ch); err != nil {
		return nil, err
	}
	if v.State() == clinicAuth.StateBranchFound {
		_ = v.Cancel(c.Context)
		return nil, fmt.Errorf("%q already has an account; run %s login", key, appName)
	}
	if err := v.BeginRegistration(); err != nil {
		return nil, err
	}
	return v, nil
}

type whoami struct {
	Role        clinicAuth.Role        `json:"role"`
	SubjectID   string                 `json:"subjectId"`
	DisplayName string                 `json:"displayName,omitempty"`
	Contact     string                 `json:"contact,omitempty"`
	Destination clinicAuth.Destination `json:"destination"`
	ExpiresAt   *time.Time             `json:"expiresAt,omitempty"`
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the stored session",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print as JSON"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			sess, ok := rt.client.Session()
			if !ok {
				return errors.New("not signed in")
			}
			out := whoami{
				Role:        sess.Role,
				SubjectID:   sess.SubjectID,
				DisplayName: sess.DisplayName,
				Contact:     sess.Contact,
				Destination: rt.client.Destination(),
			}
			if exp, ok := rt.client.TokenExpiry(); ok {
				out.ExpiresAt = &exp
			}

			if c.Bool("json") {
				enc := json.NewEncoder(rt.out)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "role\t%s\n", out.Role)
			fmt.Fprintf(tw, "subject\t%s\n", out.SubjectID)
			fmt.Fprintf(tw, "name\t%s\n", out.DisplayName)
			fmt.Fprintf(tw, "contact\t%s\n", out.Contact)
			fmt.Fprintf(tw, "destination\t%s\n", out.Destination)
			if out.ExpiresAt != nil {
				fmt.Fprintf(tw, "expires\t%s\n", out.ExpiresAt.Format(time.RFC3339))
			}
			return tw.Flush()
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored session",
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			if !rt.client.Authenticated() {
				fmt.Fprintln(rt.out, "Not signed in.")
				return nil
			}
			if err := rt.client.Logout(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(rt.out, "Signed out.")
			return nil
		}),
	}
}

func clinicsCommand() *cli.Command {
	return &cli.Command{
		Name:  "clinics",
		Usage: "List clinics available at registration",
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			clinics, err := rt.client.Clinics(c.Context)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tADDRESS")
			for _, cl := range clinics {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", cl.ID, cl.Name, cl.Address)
			}
			return tw.Flush()
		}),
	}
}
