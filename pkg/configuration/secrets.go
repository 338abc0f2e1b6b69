package configuration

import (
	"context"
	"fmt"

	"github.com/abellodlm/drewsigloo/pkg"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// TalosCredentials authenticate REST and WebSocket requests to the venue.
type TalosCredentials struct {
	Host   string
	Key    string
	Secret string
}

// SlackCredentials are used to post messages and verify slash commands.
type SlackCredentials struct {
	BotToken      string
	SigningSecret string
}

// SecretSource is an abstraction to get the credentials used by the services.
type SecretSource interface {
	GetTalosDetails(ctx context.Context, ssmClient pkg.SSMAccess, config *AppConfig) (*TalosCredentials, error)
	GetSlackDetails(ctx context.Context, ssmClient pkg.SSMAccess, config *AppConfig) (*SlackCredentials, error)
}

// SSMSecrets gets credentials from AWS SSM Parameter Store.
type SSMSecrets struct{}

// GetTalosDetails gets the Talos Key and Secret.
func (s SSMSecrets) GetTalosDetails(ctx context.Context, ssmClient pkg.SSMAccess, config *AppConfig) (*TalosCredentials, error) {
	if err := config.RequireVenue(); err != nil {
		return nil, err
	}

	key, err := getParameter(ctx, ssmClient, config.TalosKeyParameter)
	if err != nil {
		return nil, err
	}

	secret, err := getParameter(ctx, ssmClient, config.TalosSecretParameter)
	if err != nil {
		return nil, err
	}

	return &TalosCredentials{Host: config.TalosHost, Key: key, Secret: secret}, nil
}

// GetSlackDetails gets the Slack bot token and, when configured, the signing secret.
func (s SSMSecrets) GetSlackDetails(ctx context.Context, ssmClient pkg.SSMAccess, config *AppConfig) (*SlackCredentials, error) {
	token, err := getParameter(ctx, ssmClient, config.SlackTokenParameter)
	if err != nil {
		return nil, err
	}

	creds := &SlackCredentials{BotToken: token}
	if config.SlackSigningParameter == "" {
		return creds, nil
	}

	signing, err := getParameter(ctx, ssmClient, config.SlackSigningParameter)
	if err != nil {
		return nil, err
	}
	creds.SigningSecret = signing

	return creds, nil
}

func getParameter(ctx context.Context, ssmClient pkg.SSMAccess, name string) (string, error) {
	output, err := ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: true,
	})

	if err != nil {
		return "", err
	}

	if output.Parameter == nil || output.Parameter.Value == nil {
		return "", fmt.Errorf("ssm parameter %s has no value", name)
	}

	return *output.Parameter.Value, nil
}
