package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/carebridge/clinic/internal/config"
	"github.com/carebridge/clinic/internal/domain/appointment"
	"github.com/carebridge/clinic/internal/domain/healthmetric"
	"github.com/carebridge/clinic/internal/domain/identity"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/blobstore"
	"github.com/carebridge/clinic/internal/platform/db"
)

var (
	seedSpecializations = []string{
		"General Practice", "Cardiology", "Dermatology", "Pediatrics", "Neurology",
		"Orthopedics", "Endocrinology", "Psychiatry", "Ophthalmology", "ENT",
	}
	seedGenders     = []string{"male", "female", "other"}
	seedBloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
	seedReasons     = []string{
		"Annual checkup", "Persistent headache", "Follow-up on lab results",
		"Skin rash", "Back pain", "Medication review", "Blood pressure check",
	}
	seedApptTypes = []string{
		appointment.TypeConsultation, appointment.TypeFollowUp,
		appointment.TypeCheckup, appointment.TypeVirtual,
	}
)

type seedOptions struct {
	Doctors      int
	Patients     int
	Appointments int
	Metrics      int
	Password     string
	Seed         uint64
}

func seedCmd() *cobra.Command {
	var opts seedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with fake doctors, patients and appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Seed == 0 {
				opts.Seed = uint64(time.Now().UnixNano())
			}
			return runSeed(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.Doctors, "doctors", 10, "Number of doctors to create")
	cmd.Flags().IntVar(&opts.Patients, "patients", 50, "Number of patients to create")
	cmd.Flags().IntVar(&opts.Appointments, "appointments", 2, "Appointments per patient")
	cmd.Flags().IntVar(&opts.Metrics, "metrics", 4, "Health metrics per patient")
	cmd.Flags().StringVar(&opts.Password, "password", "Password123!", "Password for every seeded account")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "Random seed (0 picks one from the clock)")
	return cmd
}

func runSeed(ctx context.Context, opts seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg).With().Str("component", "seed").Logger()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	blobs, err := blobstore.NewLocalStore(cfg.UploadsDir)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTAlgorithm, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	if err != nil {
		return err
	}
	a := newApp(pool, blobs, tokens, cfg, logger)

	f := gofakeit.New(opts.Seed)
	staff := &auth.Principal{Role: auth.RoleAdmin}
	now := time.Now().UTC()

	doctorIDs := make([]uuid.UUID, 0, opts.Doctors)
	for i := 0; i < opts.Doctors; i++ {
		resp, err := a.identity.RegisterDoctor(ctx, fakeDoctor(f, opts.Password, now))
		if err != nil {
			return fmt.Errorf("seed doctor: %w", err)
		}
		p, err := a.identity.ResolvePrincipal(ctx, resp.User.ID)
		if err != nil {
			return fmt.Errorf("resolve seeded doctor: %w", err)
		}
		doctorIDs = append(doctorIDs, *p.DoctorID)
	}
	logger.Info().Int("count", len(doctorIDs)).Msg("doctors seeded")

	var appts, metrics int
	for i := 0; i < opts.Patients; i++ {
		resp, err := a.identity.RegisterPatient(ctx, fakePatient(f, opts.Password, now))
		if err != nil {
			return fmt.Errorf("seed patient: %w", err)
		}
		p, err := a.identity.ResolvePrincipal(ctx, resp.User.ID)
		if err != nil {
			return fmt.Errorf("resolve seeded patient: %w", err)
		}
		if len(doctorIDs) > 0 {
			for j := 0; j < opts.Appointments; j++ {
				req := fakeAppointment(f, *p.PatientID, doctorIDs[f.Number(0, len(doctorIDs)-1)], now)
				if _, err := a.appointment.Create(ctx, staff, req); err != nil {
					return fmt.Errorf("seed appointment: %w", err)
				}
				appts++
			}
		}
		for j := 0; j < opts.Metrics; j++ {
			if _, err := a.healthmetric.Create(ctx, p, fakeMetric(f, now)); err != nil {
				return fmt.Errorf("seed health metric: %w", err)
			}
			metrics++
		}
	}
	logger.Info().Int("patients", opts.Patients).Int("appointments", appts).Int("health_metrics", metrics).
		Msg("seed complete")
	return nil
}

func fakeEmail(f *gofakeit.Faker, first, last string) string {
	return strings.ToLower(fmt.Sprintf("%s.%s.%d@example.test", first, last, f.Number(1000, 999999)))
}

func fakeDoctor(f *gofakeit.Faker, password string, now time.Time) *identity.RegisterDoctorRequest {
	first, last := f.FirstName(), f.LastName()
	phone := f.Phone()
	years := f.Number(1, 35)
	fee := float64(f.Number(30, 250))
	hospital := f.Company() + " Hospital"
	expiry := now.AddDate(f.Number(1, 5), 0, 0)
	days := "monday,tuesday,wednesday,thursday,friday"
	return &identity.RegisterDoctorRequest{
		RegisterRequest: identity.RegisterRequest{
			Email: fakeEmail(f, first, last), Password: password,
			FirstName: first, LastName: last, Phone: &phone,
		},
		DoctorDetails: identity.DoctorDetails{
			MedicalLicenseNumber: fmt.Sprintf("LIC-%s", strings.ToUpper(f.LetterN(2))+fmt.Sprint(f.Number(100000, 999999))),
			LicenseExpiryDate:    &expiry,
			Specialization:       f.RandomString(seedSpecializations),
			YearsOfExperience:    &years,
			HospitalAffiliation:  &hospital,
			ConsultationFee:      &fee,
			AvailableDays:        &days,
		},
	}
}

func fakePatient(f *gofakeit.Faker, password string, now time.Time) *identity.RegisterPatientRequest {
	first, last := f.FirstName(), f.LastName()
	phone := f.Phone()
	dob := f.DateRange(now.AddDate(-90, 0, 0), now.AddDate(-1, 0, 0)).UTC().Truncate(24 * time.Hour)
	gender := f.RandomString(seedGenders)
	blood := f.RandomString(seedBloodGroups)
	contact := f.FirstName() + " " + last
	contactPhone := f.Phone()
	address := fmt.Sprintf("%s, %s", f.Street(), f.City())
	return &identity.RegisterPatientRequest{
		RegisterRequest: identity.RegisterRequest{
			Email: fakeEmail(f, first, last), Password: password,
			FirstName: first, LastName: last, Phone: &phone,
		},
		PatientDetails: identity.PatientDetails{
			DateOfBirth:           &dob,
			Gender:                &gender,
			BloodGroup:            &blood,
			EmergencyContactName:  &contact,
			EmergencyContactPhone: &contactPhone,
			Address:               &address,
		},
	}
}

// fakeAppointment schedules within the next 30 days on a quarter hour.
func fakeAppointment(f *gofakeit.Faker, patientID, doctorID uuid.UUID, now time.Time) *appointment.CreateRequest {
	at := now.Truncate(time.Hour).Add(time.Duration(f.Number(1, 30*24)) * time.Hour).
		Add(time.Duration(f.Number(0, 3)*15) * time.Minute)
	typ := f.RandomString(seedApptTypes)
	reason := f.RandomString(seedReasons)
	duration := []int{15, 30, 45, 60}[f.Number(0, 3)]
	req := &appointment.CreateRequest{
		PatientID:       &patientID,
		DoctorID:        &doctorID,
		AppointmentDate: at,
		DurationMinutes: &duration,
		AppointmentType: &typ,
		Reason:          &reason,
	}
	if typ == appointment.TypeVirtual {
		link := "https://meet.example.test/" + uuid.NewString()
		req.MeetingLink = &link
	}
	return req
}

func fakeMetric(f *gofakeit.Faker, now time.Time) *healthmetric.CreateRequest {
	typ := f.RandomString(healthmetric.DashboardTypes)
	at := now.Add(-time.Duration(f.Number(1, 60*24)) * time.Hour)
	req := &healthmetric.CreateRequest{MetricType: typ, RecordedAt: &at}
	switch typ {
	case healthmetric.TypeBloodPressure:
		req.Value = fmt.Sprintf("%d/%d", f.Number(100, 150), f.Number(60, 95))
		req.Unit = "mmHg"
	case healthmetric.TypeHeartRate:
		req.Value = fmt.Sprint(f.Number(55, 110))
		req.Unit = "bpm"
	case healthmetric.TypeTemperature:
		req.Value = fmt.Sprintf("%.1f", f.Float64Range(36.0, 38.5))
		req.Unit = "°C"
	default:
		req.Value = fmt.Sprintf("%.1f", f.Float64Range(45, 120))
		req.Unit = "kg"
	}
	return req
}
