package awssns

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"

	"github.com/angelmondragon/flightnotify/pkg/config"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want pkgerrors.Code
	}{
		{"throttled", &smithy.GenericAPIError{Code: "Throttling", Message: "slow down"}, pkgerrors.CodeRateLimit},
		{"wrapped throttled", fmt.Errorf("publish: %w", &smithy.GenericAPIError{Code: "ThrottledException"}), pkgerrors.CodeRateLimit},
		{"invalid phone", &smithy.GenericAPIError{Code: "InvalidParameter", Message: "Invalid parameter: PhoneNumber"}, pkgerrors.CodeValidation},
		{"endpoint disabled", &smithy.GenericAPIError{Code: "EndpointDisabled"}, pkgerrors.CodeValidation},
		{"server fault", &smithy.GenericAPIError{Code: "InternalError", Fault: smithy.FaultServer}, pkgerrors.CodeDependency},
		{"network", errors.New("dial tcp: i/o timeout"), pkgerrors.CodeDependency},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			if pkgerrors.CodeOf(got) != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, pkgerrors.CodeOf(got))
			}
			if !errors.Is(got, tc.err) {
				t.Fatal("classified error must wrap the original")
			}
		})
	}

	if Classify(nil) != nil {
		t.Fatal("nil stays nil")
	}
}

func TestNewClientWithStaticCredentials(t *testing.T) {
	client, err := NewClient(context.Background(), config.AWSConfig{
		Region:      "us-east-1",
		AccessKeyID: "test",
		SecretKey:   "test",
		EndpointURL: "http://localhost:4566",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client == nil {
		t.Fatal("expected client")
	}
	opts := client.Options()
	if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://localhost:4566" {
		t.Fatalf("expected endpoint override, got %v", opts.BaseEndpoint)
	}
}
