package registry_test

import (
	"testing"

	"github.com/turbokube/potr/pkg/registry"
)

func TestParseECR(t *testing.T) {
	repo, ok := registry.ParseECR("123456789012.dkr.ecr.eu-west-1.amazonaws.com/testproject")
	if !ok {
		t.Fatal("expected ECR repo")
	}
	if repo.Account != "123456789012" {
		t.Errorf("account %s", repo.Account)
	}
	if repo.Region != "eu-west-1" {
		t.Errorf("region %s", repo.Region)
	}
	if repo.Registry != "123456789012.dkr.ecr.eu-west-1.amazonaws.com" {
		t.Errorf("registry %s", repo.Registry)
	}

	t.Run("bare host", func(t *testing.T) {
		repo, ok := registry.ParseECR("123456789012.dkr.ecr.us-east-1.amazonaws.com")
		if !ok {
			t.Fatal("expected ECR repo")
		}
		if repo.Region != "us-east-1" {
			t.Errorf("region %s", repo.Region)
		}
	})

	t.Run("not ecr", func(t *testing.T) {
		for _, repo := range []string{
			"ghcr.io/turbokube/testproject",
			"localhost:5000/testproject",
			"123456789012.dkr.ecr.eu-west-1.amazonaws.com.evil.example/x",
			"12345.dkr.ecr.eu-west-1.amazonaws.com/short-account",
			"docker.io/library/busybox",
		} {
			if _, ok := registry.ParseECR(repo); ok {
				t.Errorf("%s parsed as ECR", repo)
			}
		}
	})
}
