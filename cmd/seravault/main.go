// Command seravault is a JSON-over-stdio helper for cross-client interop
// checks. Each command reads one JSON document from stdin and writes one to
// stdout. Binary fields are standard base64.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	seravault "github.com/seravault/client-go"
	"github.com/seravault/client-go/internal/crypto"
	"github.com/seravault/client-go/store"
)

const usage = "usage: seravault [-config file] [-v] <keygen|seal-envelope|open-envelope|migrate-envelope|encrypt|decrypt|share|unshare|store-put|store-get>"

// Config holds the streams a run uses.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultConfig returns a Config bound to the process streams.
func DefaultConfig() *Config {
	return &Config{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

var exitFunc = os.Exit

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	exitFunc(1)
}

type env struct {
	cfg      *Config
	settings seravault.Config
	logger   *zap.Logger
	engine   *seravault.Engine
}

func run(args []string, cfg *Config) error {
	fs := flag.NewFlagSet("seravault", flag.ContinueOnError)
	if cfg.Stderr != nil {
		fs.SetOutput(cfg.Stderr)
	} else {
		fs.SetOutput(io.Discard)
	}
	configPath := fs.String("config", "", "YAML config file")
	verbose := fs.Bool("v", false, "log to stderr")

	if len(args) < 2 {
		return errors.New(usage)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New(usage)
	}

	settings, err := seravault.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if *verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck
	}

	e := &env{
		cfg:      cfg,
		settings: settings,
		logger:   logger,
		engine:   seravault.NewEngine(append(settings.Options(), seravault.WithLogger(logger))...),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch cmd := fs.Arg(0); cmd {
	case "keygen":
		return e.keygen()
	case "seal-envelope":
		return e.sealEnvelope()
	case "open-envelope":
		return e.openEnvelope()
	case "migrate-envelope":
		return e.migrateEnvelope()
	case "encrypt":
		return e.encrypt(ctx)
	case "decrypt":
		return e.decrypt(ctx)
	case "share":
		return e.share(ctx)
	case "unshare":
		return e.unshare()
	case "store-put":
		return e.storePut(ctx)
	case "store-get":
		if fs.NArg() < 2 {
			return errors.New("usage: seravault store-get <storagePath>")
		}
		return e.storeGet(ctx, fs.Arg(1))
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (e *env) readInput(v any) error {
	if e.cfg.Stdin == nil {
		return errors.New("no input")
	}
	data, err := io.ReadAll(e.cfg.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	return nil
}

func (e *env) writeOutput(v any) error {
	if err := json.NewEncoder(e.cfg.Stdout).Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// KeygenOutput is written by keygen.
type KeygenOutput struct {
	PublicKey []byte `json:"publicKey"`
	SecretKey []byte `json:"secretKey"`
}

func (e *env) keygen() error {
	kp, err := crypto.GenerateKeypair()
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}
	return e.writeOutput(KeygenOutput{PublicKey: kp.PublicKey, SecretKey: kp.SecretKey})
}

// SealEnvelopeInput is read by seal-envelope.
type SealEnvelopeInput struct {
	SecretKey  []byte `json:"secretKey"`
	Passphrase string `json:"passphrase"`
	Legacy     bool   `json:"legacy,omitempty"`
}

func (e *env) sealEnvelope() error {
	var in SealEnvelopeInput
	if err := e.readInput(&in); err != nil {
		return err
	}
	if err := crypto.ValidateSecretKey(in.SecretKey); err != nil {
		return err
	}

	if in.Legacy {
		s, err := crypto.SealLegacy([]byte(in.Passphrase), in.SecretKey)
		if err != nil {
			return err
		}
		return e.writeOutput(seravault.NewLegacyEnvelope(s))
	}

	key := seravault.NewSecretBytes(in.SecretKey)
	defer key.Destroy()

	env, err := e.engine.SealEnvelope(key, []byte(in.Passphrase))
	if err != nil {
		return err
	}
	return e.writeOutput(env)
}

// EnvelopeInput is read by open-envelope and migrate-envelope.
type EnvelopeInput struct {
	Envelope   json.RawMessage `json:"envelope"`
	Passphrase string          `json:"passphrase"`
}

// OpenEnvelopeOutput is written by open-envelope.
type OpenEnvelopeOutput struct {
	Format    string `json:"format"`
	SecretKey []byte `json:"secretKey"`
}

func (e *env) openEnvelope() error {
	var in EnvelopeInput
	if err := e.readInput(&in); err != nil {
		return err
	}
	env, err := seravault.ParseEnvelope(in.Envelope)
	if err != nil {
		return err
	}
	key, err := e.engine.OpenEnvelope(env, []byte(in.Passphrase))
	if err != nil {
		return err
	}
	defer key.Destroy()

	out := OpenEnvelopeOutput{Format: env.Format().String()}
	_ = key.Use(func(b []byte) error {
		out.SecretKey = append([]byte(nil), b...)
		return nil
	})
	return e.writeOutput(out)
}

// MigrateEnvelopeOutput is written by migrate-envelope.
type MigrateEnvelopeOutput struct {
	Envelope seravault.Envelope `json:"envelope"`
	Migrated bool               `json:"migrated"`
}

func (e *env) migrateEnvelope() error {
	var in EnvelopeInput
	if err := e.readInput(&in); err != nil {
		return err
	}
	env, err := seravault.ParseEnvelope(in.Envelope)
	if err != nil {
		return err
	}
	migrated, ok, err := e.engine.MigrateEnvelope(env, []byte(in.Passphrase))
	if err != nil {
		return err
	}
	return e.writeOutput(MigrateEnvelopeOutput{Envelope: migrated, Migrated: ok})
}

// EncryptInput is read by encrypt.
type EncryptInput struct {
	Plaintext  []byte            `json:"plaintext"`
	Metadata   []byte            `json:"metadata"`
	Recipients map[string][]byte `json:"recipients"`
}

func (e *env) encrypt(ctx context.Context) error {
	var in EncryptInput
	if err := e.readInput(&in); err != nil {
		return err
	}
	obj, err := e.engine.EncryptForRecipients(ctx, in.Plaintext, in.Metadata, in.Recipients)
	if err != nil {
		return err
	}
	return e.writeOutput(obj)
}

// DecryptInput is read by decrypt and share.
type DecryptInput struct {
	Object      *seravault.EncryptedObject `json:"object"`
	RecipientID string                     `json:"recipientId"`
	SecretKey   []byte                     `json:"secretKey"`
	Recipients  map[string][]byte          `json:"recipients,omitempty"`
}

// DecryptOutput is written by decrypt.
type DecryptOutput struct {
	Plaintext []byte `json:"plaintext"`
	Metadata  []byte `json:"metadata"`
}

func (e *env) decrypt(ctx context.Context) error {
	var in DecryptInput
	if err := e.readInput(&in); err != nil {
		return err
	}
	if in.Object == nil {
		return errors.New("object is required")
	}
	plaintext, err := e.engine.Decrypt(ctx, in.Object, in.RecipientID, in.SecretKey)
	if err != nil {
		return err
	}
	metadata, err := e.engine.DecryptMetadata(ctx, in.Object, in.RecipientID, in.SecretKey)
	if err != nil {
		return err
	}
	return e.writeOutput(DecryptOutput{Plaintext: plaintext, Metadata: metadata})
}

func (e *env) share(ctx context.Context) error {
	var in DecryptInput
	if err := e.readInput(&in); err != nil {
		return err
	}
	if in.Object == nil {
		return errors.New("object is required")
	}
	contentKey, err := e.engine.UnwrapContentKey(ctx, in.Object, in.RecipientID, in.SecretKey)
	if err != nil {
		return err
	}
	defer contentKey.Destroy()

	if err := e.engine.ShareWith(ctx, in.Object, in.Recipients, contentKey); err != nil {
		return err
	}
	return e.writeOutput(in.Object)
}

// UnshareInput is read by unshare.
type UnshareInput struct {
	Object       *seravault.EncryptedObject `json:"object"`
	RecipientIDs []string                   `json:"recipientIds"`
}

// UnshareOutput is written by unshare.
type UnshareOutput struct {
	Object  *seravault.EncryptedObject `json:"object"`
	Removed int                        `json:"removed"`
}

func (e *env) unshare() error {
	var in UnshareInput
	if err := e.readInput(&in); err != nil {
		return err
	}
	if in.Object == nil {
		return errors.New("object is required")
	}
	removed := e.engine.Unshare(in.Object, in.RecipientIDs...)
	return e.writeOutput(UnshareOutput{Object: in.Object, Removed: removed})
}

func (e *env) openStore() (store.Store, error) {
	return store.Open(e.settings.Storage, e.logger)
}

func (e *env) storePut(ctx context.Context) error {
	var obj seravault.EncryptedObject
	if err := e.readInput(&obj); err != nil {
		return err
	}
	s, err := e.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Put(ctx, &obj); err != nil {
		return err
	}
	return e.writeOutput(map[string]string{"storagePath": obj.StoragePath})
}

func (e *env) storeGet(ctx context.Context, storagePath string) error {
	s, err := e.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	retry := store.DefaultRetryConfig()
	retry.MaxRetries = e.settings.Storage.Retries
	obj, err := store.Fetch(ctx, s, storagePath, retry)
	if err != nil {
		return err
	}
	return e.writeOutput(obj)
}
