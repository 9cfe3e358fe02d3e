package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/hivestreaming/partner-keytool/internal/key"
	"github.com/hivestreaming/partner-keytool/internal/registry"
	"github.com/hivestreaming/partner-keytool/internal/token"
)

type CLI struct {
	PartnerID    string `required:"" help:"Partner identifier"`
	PartnerToken string `env:"PARTNER_TOKEN" help:"Partner bearer token for registry calls"`
	Env          string `default:"prod" enum:"prod,test" help:"Registry environment"`
	LogLevel     string `default:"info" enum:"debug,info,warn,error" help:"Log level"`

	Generate      GenerateCmd      `cmd:"" help:"Generate a 4096-bit RSA key pair"`
	Publish       PublishCmd       `cmd:"" help:"Publish a key's public half to the registry"`
	Sign          SignCmd          `cmd:"" help:"Sign a viewer token"`
	SignReporting SignReportingCmd `cmd:"" help:"Sign a reporting token wrapped in an admin portal redirect URL"`
	List          ListCmd          `cmd:"" help:"List published keys"`
	Get           GetCmd           `cmd:"" help:"Fetch one published key record"`
	Delete        DeleteCmd        `cmd:"" help:"Delete a published key"`
}

func (cli *CLI) logLevel() slog.Level {
	switch cli.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (cli *CLI) registryClient(logger *slog.Logger) (*registry.Client, error) {
	if cli.PartnerToken == "" {
		return nil, errors.New("missing partner token (--partner-token or PARTNER_TOKEN)")
	}
	return registry.NewClient(logger, registry.Endpoint(cli.Env), cli.PartnerID, cli.PartnerToken)
}

type GenerateCmd struct {
	Out   string `default:"private.pem" help:"Path to write the private key PEM"`
	KeyID string `help:"Key id to report for the new key; minted if omitted"`
}

func (cmd *GenerateCmd) Run(logger *slog.Logger) error {
	pair, err := key.Generate()
	if err != nil {
		return err
	}
	if err := pair.WriteFile(cmd.Out); err != nil {
		return err
	}
	keyID := cmd.KeyID
	if keyID == "" {
		keyID = uuid.NewString()
	}
	logger.Info("generated key pair", slog.String("path", cmd.Out), slog.String("key-id", keyID))
	return printJSON(struct {
		KeyID string `json:"keyId"`
		key.JWK
	}{keyID, pair.PublicJWK()})
}

type PublishCmd struct {
	Key        string `required:"" help:"Path to the private key PEM"`
	KeyID      string `required:"" help:"Key id to publish under"`
	Expiration string `required:"" help:"Key expiration: Unix seconds or a duration like '30 days'"`
}

func (cmd *PublishCmd) Run(ctx context.Context, logger *slog.Logger, cli *CLI) error {
	pair, err := key.LoadFile(cmd.Key)
	if err != nil {
		return err
	}
	client, err := cli.registryClient(logger)
	if err != nil {
		return err
	}
	jwk := pair.PublicJWK()
	if err := client.Create(ctx, cmd.KeyID, jwk.Exponent, jwk.Modulus, cmd.Expiration); err != nil {
		return fmt.Errorf("failed to publish key: %w", err)
	}
	logger.Info("published key", slog.String("key-id", cmd.KeyID))
	return nil
}

type SignCmd struct {
	Key        string   `required:"" help:"Path to the private key PEM"`
	KeyID      string   `required:"" help:"Published key id to bind the token to"`
	CustomerID string   `required:"" help:"Customer id claim"`
	VideoID    string   `required:"" help:"Video/content id claim"`
	Manifest   []string `help:"Manifest id the token authorizes, repeatable"`
	Regex      []string `help:"Content-matching regex, repeatable; mutually exclusive with --manifest"`
	EventName  string   `help:"Event name for the token's action claim"`
	ExpiresIn  string   `default:"6h" help:"Token lifetime: seconds or a duration like '2 days'"`
}

func (cmd *SignCmd) Run(logger *slog.Logger, cli *CLI) error {
	pair, err := key.LoadFile(cmd.Key)
	if err != nil {
		return err
	}
	target, err := token.ResolveTarget(cmd.Manifest, cmd.Regex)
	if err != nil {
		return err
	}
	signer := token.NewSigner(logger, token.Identity{PartnerID: cli.PartnerID, Key: pair.Private})
	signed, err := signer.Sign(cmd.KeyID, cmd.CustomerID, cmd.VideoID, target, cmd.EventName, cmd.ExpiresIn, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(signed)
	return nil
}

type SignReportingCmd struct {
	Key        string `required:"" help:"Path to the private key PEM"`
	KeyID      string `required:"" help:"Published key id to bind the token to"`
	CustomerID string `required:"" help:"Customer id claim"`
	VideoID    string `required:"" help:"Video/content id claim"`
	ExpiresIn  string `default:"6h" help:"Token lifetime: seconds or a duration like '2 days'"`
	Endpoint   string `default:"prod" help:"Redirect endpoint: prod or test"`
}

func (cmd *SignReportingCmd) Run(logger *slog.Logger, cli *CLI) error {
	pair, err := key.LoadFile(cmd.Key)
	if err != nil {
		return err
	}
	signer := token.NewSigner(logger, token.Identity{PartnerID: cli.PartnerID, Key: pair.Private})
	redirectURL, err := signer.SignReporting(cmd.KeyID, cmd.CustomerID, cmd.VideoID, cmd.ExpiresIn, cmd.Endpoint, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(redirectURL)
	return nil
}

type ListCmd struct {
	IncludeDeleted bool `help:"Include deleted key records"`
}

func (cmd *ListCmd) Run(ctx context.Context, logger *slog.Logger, cli *CLI) error {
	client, err := cli.registryClient(logger)
	if err != nil {
		return err
	}
	records, err := client.List(ctx, cmd.IncludeDeleted)
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}
	return printJSON(records)
}

type GetCmd struct {
	KeyID string `required:"" help:"Key id to fetch"`
}

func (cmd *GetCmd) Run(ctx context.Context, logger *slog.Logger, cli *CLI) error {
	client, err := cli.registryClient(logger)
	if err != nil {
		return err
	}
	record, err := client.Get(ctx, cmd.KeyID)
	if err != nil {
		return fmt.Errorf("failed to fetch key: %w", err)
	}
	return printJSON(record)
}

type DeleteCmd struct {
	KeyID string `required:"" help:"Key id to delete"`
}

func (cmd *DeleteCmd) Run(ctx context.Context, logger *slog.Logger, cli *CLI) error {
	client, err := cli.registryClient(logger)
	if err != nil {
		return err
	}
	if err := client.Delete(ctx, cmd.KeyID); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	logger.Info("deleted key", slog.String("key-id", cmd.KeyID))
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	cliCtx := kong.Parse(&cli,
		kong.Name("keytool"),
		kong.Description("Manage partner signing keys and mint viewer tokens."))

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cli.logLevel()}))

	cliCtx.BindTo(ctx, (*context.Context)(nil))
	cliCtx.Bind(logger)
	cliCtx.Bind(&cli)

	if err := cliCtx.Run(); err != nil {
		logger.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}
