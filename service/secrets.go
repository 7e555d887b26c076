package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ReadSecretString fetches the raw string value stored at path.
func ReadSecretString(ctx context.Context, client SecretGetter, path string) (string, error) {
	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(path)})
	if err != nil {
		return "", fmt.Errorf("reading secret %s: %w", path, err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", path)
	}
	return *result.SecretString, nil
}

// ReadSecret decodes the JSON document stored at path into T.
func ReadSecret[T any](ctx context.Context, client SecretGetter, path string) (T, error) {
	var secret T
	raw, err := ReadSecretString(ctx, client, path)
	if err != nil {
		return secret, err
	}
	if err := json.Unmarshal([]byte(raw), &secret); err != nil {
		return secret, fmt.Errorf("secret %s read error: %w", path, err)
	}
	return secret, nil
}
