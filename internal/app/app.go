package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/furniture-store/internal/asset/s3"
	"github.com/xenking/furniture-store/internal/domain/asset"
	"github.com/xenking/furniture-store/internal/domain/auth"
	"github.com/xenking/furniture-store/internal/domain/coupon"
	"github.com/xenking/furniture-store/internal/domain/notify"
	"github.com/xenking/furniture-store/internal/domain/order"
	"github.com/xenking/furniture-store/internal/domain/payment"
	"github.com/xenking/furniture-store/internal/domain/product"
	"github.com/xenking/furniture-store/internal/google"
	"github.com/xenking/furniture-store/internal/handler"
	"github.com/xenking/furniture-store/internal/mail/sendgrid"
	"github.com/xenking/furniture-store/internal/payment/razorpay"
	"github.com/xenking/furniture-store/pkg/health"
	"github.com/xenking/furniture-store/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("env", cfg.Env),
		zap.String("storage", cfg.Storage.Driver),
	)
	ctx = zctx.Base(ctx, lg)

	store, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	healthSvc := health.New()
	healthSvc.AddReadinessCheck(store.Driver(), 5*time.Second, health.PingCheck(store))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Mail.
	mailer, err := newMailer(cfg.Mail, lg)
	if err != nil {
		return err
	}
	dispatcher, err := notify.NewDispatcher(mailer, notify.Config{
		Store:            cfg.Mail.FromName,
		OperatorEmail:    cfg.Mail.OperatorEmail,
		PlaceholderEmail: cfg.Mail.PlaceholderEmail,
		QueueSize:        cfg.Mail.QueueSize,
		Workers:          cfg.Mail.Workers,
		MaxAttempts:      cfg.Mail.MaxAttempts,
		Backoff:          cfg.Mail.Backoff,
		MeterProvider:    m.MeterProvider(),
	}, lg.Named("notify"))
	if err != nil {
		return errors.Wrap(err, "create dispatcher")
	}
	addMailQueueCheck(healthSvc, dispatcher.Backlog, cfg.Mail.QueueSize)

	// Images.
	var (
		assets *asset.Service
		images product.ImageRemover
	)
	if cfg.Assets.Bucket != "" {
		bucket, err := s3.New(ctx, s3.Config{
			Bucket:          cfg.Assets.Bucket,
			Region:          cfg.Assets.Region,
			Endpoint:        cfg.Assets.Endpoint,
			AccessKeyID:     cfg.Assets.AccessKeyID,
			SecretAccessKey: cfg.Assets.SecretAccessKey,
			PublicBaseURL:   cfg.Assets.PublicBaseURL,
			UsePathStyle:    cfg.Assets.UsePathStyle,
		})
		if err != nil {
			return errors.Wrap(err, "create asset store")
		}
		assets = asset.NewService(bucket, cfg.Assets.Prefix, cfg.Assets.MaxFileBytes)
		images = assets
		healthSvc.AddReadinessCheck("bucket", 5*time.Second, health.PingCheck(bucket))
	} else {
		lg.Warn("Asset bucket not configured, uploads disabled")
	}

	// Payments.
	if cfg.Payment.KeyID == "" || cfg.Payment.KeySecret == "" {
		lg.Warn("Razorpay credentials not configured, online payments will fail")
	}
	gateway := razorpay.New(cfg.Payment.KeyID, cfg.Payment.KeySecret, razorpay.WithBaseURL(cfg.Payment.APIURL))
	payments := payment.NewService(gateway, cfg.Payment.KeySecret, cfg.Payment.Currency)

	// Domain services.
	couponValidator := coupon.NewRepoValidator(store.Coupons)
	orderService, err := order.NewService(store.Products, couponValidator, store.Orders, payments, dispatcher, order.Config{
		IDPrefix:         cfg.Orders.IDPrefix,
		IDDigits:         cfg.Orders.IDDigits,
		PriceTolerance:   cfg.Orders.Tolerance(),
		PermissiveStatus: cfg.Orders.PermissiveStatus,
		MeterProvider:    m.MeterProvider(),
		TracerProvider:   m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	sessions := auth.NewSessions(cfg.Auth.Secret)
	adminService := auth.NewAdminService(store.Users, store.OTPs, sessions, dispatcher, auth.AdminConfig{
		FallbackEmail:    cfg.Auth.AdminEmail,
		FallbackPassword: cfg.Auth.AdminPassword,
		OTPSecret:        cfg.Auth.OTPSecret,
		OTPTTL:           cfg.Auth.OTPTTL,
	})
	if err := adminService.EnsureAdmin(ctx); err != nil {
		return errors.Wrap(err, "ensure admin")
	}
	socialService := auth.NewSocialService(store.Users, sessions, google.NewVerifier(cfg.Google.UserInfoURL, nil))

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{
			SecureCookies:  cfg.SecureCookies(),
			MaxUploadBytes: cfg.Assets.MaxUploadBytes,
		},
		handler.Deps{
			Products:        product.NewService(store.Products, images),
			Categories:      store.Categories,
			Coupons:         coupon.NewService(store.Coupons),
			CouponValidator: couponValidator,
			Orders:          orderService,
			Payments:        payments,
			Admin:           adminService,
			Social:          socialService,
			Sessions:        sessions,
			Assets:          assets,
		},
	)
	engine := handler.NewEngine(h, "/api", handler.CORS(handler.CORSConfig{
		Origins:     cfg.CORS.Origins,
		Credentials: cfg.CORS.AllowCredentials,
	}))

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Mux: health endpoints + gin API routes on one server.
	routeFinder := httpmiddleware.MakeRouteFinder(handler.Routes(engine))
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", engine)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(lg),
			httpmiddleware.RateLimitWithCleanup(ctx, rateLimits(cfg.RateLimit)),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Instrument("store-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		if err := dispatcher.Close(shutdownCtx); err != nil {
			lg.Warn("Mail queue not drained", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newMailer returns the SendGrid transport, or a mailer that only logs when
// no API key is configured.
func newMailer(cfg MailConfig, lg *zap.Logger) (notify.Mailer, error) {
	if cfg.APIKey == "" {
		lg.Warn("SendGrid API key not configured, emails will be logged and dropped")
		return notify.NopMailer{Logger: lg.Named("mail")}, nil
	}
	m, err := sendgrid.New(sendgrid.Config{
		APIKey:   cfg.APIKey,
		From:     cfg.From,
		FromName: cfg.FromName,
		Host:     cfg.Host,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create mailer")
	}
	return m, nil
}

func rateLimits(cfg RateLimitConfig) httpmiddleware.RateLimitConfig {
	return httpmiddleware.RateLimitConfig{
		Max:    cfg.Max,
		Window: cfg.Window,
		Rules: []httpmiddleware.RateLimitRule{
			{
				Name:  "auth",
				Match: httpmiddleware.Match(http.MethodPost, "/api/admin/login", "/api/admin/otp/", "/api/auth/"),
				Max:   cfg.AuthMax,
			},
			{
				Name:  "checkout",
				Match: httpmiddleware.Match(http.MethodPost, "/api/orders", "/api/coupons/validate", "/api/payment/", "/api/razorpay/"),
				Max:   cfg.CheckoutMax,
			},
		},
		Skip: httpmiddleware.Paths("/livez", "/readyz"),
	}
}

// addMailQueueCheck takes the instance out of rotation while the mail queue
// stays full. It is not a liveness check: a restart drops the queued mail.
func addMailQueueCheck(h *health.Health, backlog func() int, queueSize int) {
	h.AddReadinessCheck("mail_queue", time.Second,
		health.BacklogCheck(backlog, queueSize-1),
		health.WithThresholds(6, 1),
	)
}
