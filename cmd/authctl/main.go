// Command authctl is the operator tool for secrets, password hashes, tokens and principals.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

func main() {
	secretFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "secret",
			Usage:   "HMAC signing secret",
			Sources: cli.EnvVars("AUTH_JWT_SECRET"),
		},
		&cli.StringFlag{
			Name:    "kid",
			Usage:   "Key id carried in the token header (defaults to the secret fingerprint)",
			Sources: cli.EnvVars("AUTH_JWT_KEY_ID"),
		},
	}

	cmd := &cli.Command{
		Name:  "authctl",
		Usage: "Operate an authguard deployment",
		Commands: []*cli.Command{
			{
				Name:  "generate-secret",
				Usage: "Generate a random signing secret",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "bytes",
						Aliases: []string{"b"},
						Value:   48,
						Usage:   "Number of random bytes before encoding",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return RunGenerateSecret(os.Stdout, cmd.Int("bytes"))
				},
			},
			{
				Name:  "hash-password",
				Usage: "Hash a password for manual provisioning",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Plaintext password",
						Sources:  cli.EnvVars("AUTHCTL_PASSWORD"),
					},
					&cli.StringFlag{
						Name:    "algorithm",
						Aliases: []string{"alg"},
						Value:   "bcrypt",
						Usage:   "Hash algorithm (bcrypt or argon2id)",
						Sources: cli.EnvVars("AUTH_PASSWORD_ALGORITHM"),
					},
					&cli.IntFlag{
						Name:    "cost",
						Value:   12,
						Usage:   "bcrypt cost",
						Sources: cli.EnvVars("AUTH_BCRYPT_COST"),
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return RunHashPassword(os.Stdout, cmd.String("algorithm"), cmd.Int("cost"), cmd.String("password"))
				},
			},
			{
				Name:  "issue-token",
				Usage: "Issue a signed token without a credential check",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "subject",
						Aliases:  []string{"s"},
						Required: true,
						Usage:    "Token subject (identity)",
					},
					&cli.StringFlag{
						Name:    "role",
						Aliases: []string{"r"},
						Value:   "user",
						Usage:   "Role claim (admin, manager or user)",
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Value: time.Hour,
						Usage: "Token lifetime",
					},
				}, secretFlags...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return RunIssueToken(os.Stdout, TokenOptions{
						Secret:  cmd.String("secret"),
						KeyID:   cmd.String("kid"),
						Subject: cmd.String("subject"),
						Role:    cmd.String("role"),
						TTL:     cmd.Duration("ttl"),
					}, time.Now())
				},
			},
			{
				Name:  "verify-token",
				Usage: "Verify a token and print its claims",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "token",
						Aliases:  []string{"t"},
						Required: true,
						Usage:    "Compact token",
					},
				}, secretFlags...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return RunVerifyToken(os.Stdout, TokenOptions{
						Secret: cmd.String("secret"),
						KeyID:  cmd.String("kid"),
					}, cmd.String("token"), time.Now())
				},
			},
			{
				Name:  "create-principal",
				Usage: "Create a principal in the configured postgres or sqlite credential store",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "identity",
						Aliases:  []string{"i"},
						Required: true,
						Usage:    "Identity (username or email)",
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Initial password",
						Sources:  cli.EnvVars("AUTHCTL_PASSWORD"),
					},
					&cli.StringFlag{
						Name:    "role",
						Aliases: []string{"r"},
						Value:   "user",
						Usage:   "Role (admin, manager or user)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return RunCreatePrincipal(ctx, os.Stdout, nil, cmd.String("identity"), cmd.String("password"), cmd.String("role"))
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "authctl:", err)
		os.Exit(1)
	}
}
