// Package main содержит утилиту для заведения учётной записи из консоли,
// например первого администратора блога.
//
// Пароль читается с терминала без эха либо из переменной BLOG_USER_PASSWORD.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/magabrotheeeer/blog-auth/internal/config"
	"github.com/magabrotheeeer/blog-auth/internal/lib/password"
	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
	"github.com/magabrotheeeer/blog-auth/internal/lib/validation"
	"github.com/magabrotheeeer/blog-auth/internal/migrations"
	"github.com/magabrotheeeer/blog-auth/internal/models"
	"github.com/magabrotheeeer/blog-auth/internal/storage"
)

const passwordEnv = "BLOG_USER_PASSWORD"

func main() {
	email := flag.String("email", "", "email of the new user")
	name := flag.String("name", "", "display name")
	admin := flag.Bool("admin", false, "grant admin role")
	flag.Parse()

	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	plain, err := readPassword()
	if err != nil {
		logger.Error("failed to read password", sl.Err(err))
		os.Exit(1)
	}

	role := models.RoleUser
	if *admin {
		role = models.RoleAdmin
	}
	in := newUser{Email: strings.TrimSpace(*email), Name: strings.TrimSpace(*name), Password: plain}
	if res := validation.Check(validation.New(), in); !res.OK() {
		for field, msg := range res.Fields() {
			fmt.Fprintf(os.Stderr, "%s: %s\n", field, msg)
		}
		os.Exit(2)
	}

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		logger.Error("failed to connect to database", sl.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		logger.Error("failed to apply migrations", sl.Err(err))
		os.Exit(1)
	}

	hash, err := password.NewHasher(cfg.Hashing.Cost).Hash(in.Password)
	if err != nil {
		logger.Error("failed to hash password", sl.Err(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uid, err := db.CreateUser(ctx, models.User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         role,
	})
	if err != nil {
		logger.Error("failed to create user", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("user created", slog.String("user_uid", uid), slog.String("role", role))
}

// newUser - те же правила, что и при регистрации через API.
type newUser struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Password string `json:"password" validate:"required,min=8,max_bytes=72,password_policy"`
}

func readPassword() (string, error) {
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal, set %s", passwordEnv)
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
