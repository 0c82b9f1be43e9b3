package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/byteness/embedrelay/config"
)

// SecretsManagerAPI defines the Secrets Manager operation used to load TLS
// material.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// TLSSecret is the JSON layout of a TLS secret. Both values are PEM.
type TLSSecret struct {
	Certificate string `json:"certificate"`
	PrivateKey  string `json:"private_key"`
}

// ErrEmptyTLSSecret is returned when a TLS secret lacks a certificate or key.
var ErrEmptyTLSSecret = errors.New("TLS secret must contain certificate and private_key")

// LoadTLSConfig returns the server TLS configuration: from the certificate
// and key files when set, else from the Secrets Manager secret. It returns
// nil when neither is configured. client is only used for the secret and
// may be nil otherwise.
func LoadTLSConfig(ctx context.Context, cfg *config.Config, client SecretsManagerAPI) (*tls.Config, error) {
	var (
		cert tls.Certificate
		err  error
	)

	switch {
	case cfg.Server.TLSCertFile != "" && cfg.Server.TLSKeyFile != "":
		cert, err = tls.LoadX509KeyPair(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load TLS key pair: %w", err)
		}
	case cfg.Server.TLSSecretID != "":
		if client == nil {
			return nil, errors.New("TLS secret configured without a Secrets Manager client")
		}
		cert, err = certificateFromSecret(ctx, client, cfg.Server.TLSSecretID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func certificateFromSecret(ctx context.Context, client SecretsManagerAPI, secretID string) (tls.Certificate, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("get TLS secret %s: %w", secretID, err)
	}

	var secret TLSSecret
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &secret); err != nil {
		return tls.Certificate{}, fmt.Errorf("parse TLS secret %s: %w", secretID, err)
	}
	if secret.Certificate == "" || secret.PrivateKey == "" {
		return tls.Certificate{}, ErrEmptyTLSSecret
	}

	cert, err := tls.X509KeyPair([]byte(secret.Certificate), []byte(secret.PrivateKey))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("TLS secret %s: %w", secretID, err)
	}
	return cert, nil
}
