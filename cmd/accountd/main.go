package main

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"net/smtp"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gofiber/fiber/v2"
	accounts "github.com/goliatone/go-accounts"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/migrate"
)

type config struct {
	Addr               string   `env:"ACCOUNTS_ADDR" envDefault:":3000"`
	DSN                string   `env:"ACCOUNTS_DSN" envDefault:"file:accounts.db?cache=shared&_pragma=foreign_keys(1)"`
	BaseURL            string   `env:"ACCOUNTS_BASE_URL" envDefault:"http://localhost:3000"`
	Debug              bool     `env:"ACCOUNTS_DEBUG" envDefault:"false"`
	SigningKey         string   `env:"ACCOUNTS_SIGNING_KEY,required"`
	SigningKeyPrevious []string `env:"ACCOUNTS_SIGNING_KEY_PREVIOUS" envSeparator:","`
	SigningMethod      string   `env:"ACCOUNTS_SIGNING_METHOD" envDefault:"HS256"`
	ContextKey         string   `env:"ACCOUNTS_CONTEXT_KEY" envDefault:"app:session"`
	TokenExpiration    int      `env:"ACCOUNTS_TOKEN_EXPIRATION" envDefault:"168"`
	TokenLookup        string   `env:"ACCOUNTS_TOKEN_LOOKUP" envDefault:"header:Authorization,cookie:app:session"`
	AuthScheme         string   `env:"ACCOUNTS_AUTH_SCHEME" envDefault:"Bearer"`
	Issuer             string   `env:"ACCOUNTS_ISSUER" envDefault:"accountd"`
	Audience           []string `env:"ACCOUNTS_AUDIENCE" envDefault:"accountd"`
	SMTPAddr           string   `env:"ACCOUNTS_SMTP_ADDR"`
	SMTPFrom           string   `env:"ACCOUNTS_SMTP_FROM" envDefault:"no-reply@localhost"`
	SMTPUser           string   `env:"ACCOUNTS_SMTP_USER"`
	SMTPPass           string   `env:"ACCOUNTS_SMTP_PASS"`
}

func (c config) GetSigningKey() string    { return c.SigningKey }
func (c config) GetSigningMethod() string { return c.SigningMethod }
func (c config) GetContextKey() string    { return c.ContextKey }
func (c config) GetTokenExpiration() int  { return c.TokenExpiration }
func (c config) GetTokenLookup() string   { return c.TokenLookup }
func (c config) GetAuthScheme() string    { return c.AuthScheme }
func (c config) GetIssuer() string        { return c.Issuer }
func (c config) GetAudience() []string    { return c.Audience }

func main() {
	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	repo := accounts.NewRepositoryManager(db)
	repo.MustValidate()

	provider := accounts.NewUserProvider(repo.Users())
	auther := accounts.NewAuthenticator(provider, cfg)

	if len(cfg.SigningKeyPrevious) > 0 {
		// sessions signed before a key rotation stay valid until they expire
		auther.WithTokenValidator(accounts.NewKeyRotationValidator(cfg, cfg.SigningKeyPrevious...))
	}

	mailer, err := accounts.NewTemplateMailer(newSender(cfg), cfg.BaseURL)
	if err != nil {
		log.Fatalf("mailer: %v", err)
	}

	routeAuth, err := accounts.NewHTTPAuthenticator(auther, cfg)
	if err != nil {
		log.Fatalf("middleware: %v", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	accounts.RegisterAuthRoutes(app, routeAuth.ProtectedRoute(),
		accounts.WithControllerRepo(repo),
		accounts.WithControllerAuther(auther),
		accounts.WithControllerMailer(mailer),
		accounts.WithControllerDebug(cfg.Debug),
	)

	go func() {
		<-ctx.Done()
		// drain in-flight requests before the pool closes
		if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	if err := app.Listen(cfg.Addr); err != nil {
		log.Fatalf("listen: %v", err)
	}
}

func runMigrations(ctx context.Context, db *bun.DB) error {
	files, err := fs.Sub(accounts.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(files); err != nil {
		return err
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}

	if _, err := migrator.Migrate(ctx); err != nil {
		return err
	}

	return nil
}

func newSender(cfg config) accounts.Sender {
	if cfg.SMTPAddr == "" {
		return accounts.DevSender{}
	}

	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		host, _, _ := strings.Cut(cfg.SMTPAddr, ":")
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, host)
	}

	return &accounts.SMTPSender{
		Addr: cfg.SMTPAddr,
		From: cfg.SMTPFrom,
		Auth: auth,
	}
}
