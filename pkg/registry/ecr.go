// Package registry resolves credentials and reachability for push targets.
package registry

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"go.uber.org/zap"
)

// ecrHost matches <account>.dkr.ecr.<region>.amazonaws.com with or without a repository path
var ecrHost = regexp.MustCompile(`^(\d{12})\.dkr\.ecr\.([a-z0-9][a-z0-9-]*)\.amazonaws\.com(?:/|$)`)

type ECRRepo struct {
	Registry string
	Account  string
	Region   string
}

// ParseECR recognizes ECR repository references so push can log in
// with token auth instead of assuming ambient docker credentials
func ParseECR(repo string) (*ECRRepo, bool) {
	m := ecrHost.FindStringSubmatch(repo)
	if m == nil {
		return nil, false
	}
	return &ECRRepo{
		Registry: fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", m[1], m[2]),
		Account:  m[1],
		Region:   m[2],
	}, true
}

type Credentials struct {
	Username string
	Password string
}

// Credentials exchanges the ambient AWS identity for a registry token.
// The token is account wide, the repository part of the ref doesn't matter.
func (r *ECRRepo) Credentials(ctx context.Context) (*Credentials, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(r.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	out, err := ecr.NewFromConfig(cfg).GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return nil, fmt.Errorf("ecr authorization token: %w", err)
	}
	if len(out.AuthorizationData) == 0 || out.AuthorizationData[0].AuthorizationToken == nil {
		return nil, fmt.Errorf("ecr authorization token: empty response")
	}
	raw, err := base64.StdEncoding.DecodeString(*out.AuthorizationData[0].AuthorizationToken)
	if err != nil {
		return nil, fmt.Errorf("ecr authorization token: %w", err)
	}
	username, password, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, fmt.Errorf("ecr authorization token: unexpected format")
	}
	zap.L().Debug("ecr token issued",
		zap.String("registry", r.Registry),
		zap.String("username", username),
	)
	return &Credentials{Username: username, Password: password}, nil
}
