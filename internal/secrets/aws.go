package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/shared"
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSProvider reads JSON secrets from AWS Secrets Manager. One client is kept per region.
type AWSProvider struct {
	mu        sync.Mutex
	clients   map[string]secretsAPI
	newClient func(ctx context.Context, region string) (secretsAPI, error)
	logger    *log.Logger
}

func NewAWSProvider(logger *log.Logger) *AWSProvider {
	if logger == nil {
		logger = log.Default()
	}
	return &AWSProvider{
		clients:   map[string]secretsAPI{},
		newClient: defaultClient,
		logger:    shared.WithLogger(logger, "component", "secrets", "provider", "aws"),
	}
}

func defaultClient(ctx context.Context, region string) (secretsAPI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

func (p *AWSProvider) client(ctx context.Context, region string) (secretsAPI, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[region]; ok {
		return c, nil
	}
	c, err := p.newClient(ctx, region)
	if err != nil {
		return nil, err
	}
	p.clients[region] = c
	return c, nil
}

func (p *AWSProvider) GetSecret(ctx context.Context, region, name string) (map[string]string, error) {
	c, err := p.client(ctx, region)
	if err != nil {
		return nil, err
	}

	out, err := c.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)})
	if err != nil {
		p.logger.Error("error retrieving secret", "name", name, "region", region, "error", err)

		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrSecretNotFound, name)
		}
		return nil, fmt.Errorf("%w: secrets manager: %v", shared.ErrUpstream, err)
	}

	if out.SecretString == nil {
		return nil, fmt.Errorf("%w: %s has no string value", shared.ErrSecretNotFound, name)
	}

	var secret map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &secret); err != nil {
		return nil, fmt.Errorf("%w: secret %s is not a JSON object: %v", shared.ErrInvalidConfig, name, err)
	}
	return secret, nil
}
