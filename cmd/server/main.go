package main

import (
	"context"
	"fmt"
	"log"

	"signet/internal/config"
	"signet/internal/email/noop"
	"signet/internal/email/ses"
	"signet/internal/handler"
	"signet/internal/irn"
	s3keys "signet/internal/keysource/s3"
	"signet/internal/port"
	"signet/internal/qr"
	"signet/internal/registry"
	"signet/internal/repository/postgres"
	"signet/internal/router"
	"signet/internal/sequence"
	"signet/internal/service"
	"signet/internal/validator"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize stores
	seqStore := postgres.NewSequenceStore(db)
	dupStore := postgres.NewDuplicateStore(db)

	// Initialize core components
	generator := irn.NewGenerator(cfg.Issuer.Secret, cfg.Issuer.ServiceID)
	allocator := sequence.NewAllocator(
		sequence.WithCeiling(cfg.Issuer.SequenceCeiling),
		sequence.WithStore(seqStore),
	)
	reg := registry.NewRegistry(
		registry.WithCapacity(cfg.Issuer.RegistryCapacity),
		registry.WithStore(dupStore),
	)
	val := validator.New()

	n, err := reg.Hydrate(context.Background())
	if err != nil {
		return fmt.Errorf("failed to hydrate duplicate registry: %w", err)
	}
	log.Printf("server: duplicate registry hydrated with %d records", n)

	// QR signer key source: inline PEM, local bundle, or S3 bundle
	builder := qr.NewBuilder(cfg.QR.VerifyBaseURL)
	var signerOpts []qr.SignerOption
	switch {
	case cfg.QR.PublicKeyPEM != "":
		signerOpts = append(signerOpts, qr.WithInlineKey(cfg.QR.PublicKeyPEM))
	case cfg.QR.BundlePath != "":
		signerOpts = append(signerOpts, qr.WithBundleFile(cfg.QR.BundlePath))
	case cfg.QR.UseS3Bundle:
		src, err := s3keys.NewBundleSource(&cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 key source: %w", err)
		}
		signerOpts = append(signerOpts, qr.WithBundleSource(src))
	}
	signer := qr.NewSigner(builder, signerOpts...)

	// Alerts
	var alerts port.AlertSender
	if cfg.Email.Provider == "ses" {
		alerts, err = ses.NewSESSender(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName, cfg.Email.AlertTo)
		if err != nil {
			return fmt.Errorf("failed to initialize SES sender: %w", err)
		}
	} else {
		alerts = noop.NewNoopSender()
	}

	// Initialize services
	issuanceSvc := service.NewIssuanceService(generator, allocator, reg, val, signer, nil, cfg.Issuer.SimilarityThreshold)
	bulkSvc := service.NewBulkService(issuanceSvc, allocator, alerts, service.BulkConfig{
		MaxBatchSize:    cfg.Issuer.MaxBatchSize,
		Retention:       cfg.Jobs.Retention,
		CleanupInterval: cfg.Jobs.CleanupInterval,
	})
	authSvc := service.NewAuthService(cfg.Auth.Clients(), cfg.JWT)

	go bulkSvc.StartCleanupLoop(context.Background())

	// Initialize handlers
	authH := handler.NewAuthHandler(authSvc)
	issuanceH := handler.NewIssuanceHandler(issuanceSvc)
	bulkH := handler.NewBulkHandler(bulkSvc)
	verifyH := handler.NewVerifyHandler(generator, reg, val)
	healthH := handler.NewHealthHandler(db)

	// Setup router
	r := router.Setup(cfg, authSvc, authH, issuanceH, bulkH, verifyH, healthH)

	log.Printf("Server starting on %s", cfg.Server.Port)
	if err := r.Run(cfg.Server.Port); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}
