package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdalberg/acs/transport"
	"github.com/jdalberg/acs/transport/transporttest"
)

func TestRegister(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "aws", caps.Name)
	assert.True(t, caps.SupportsNativeDLQ)
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, transport.AWSCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	t.Run("creates transport with stubbed factories", func(t *testing.T) {
		stubFactories(t)

		wantPub := &transporttest.Publisher{}
		wantSub := &transporttest.Subscriber{}
		var resolvedAccount, resolvedRegion string

		TopicResolverFactory = func(accountID, region string) (*sns.GenerateArnTopicResolver, error) {
			resolvedAccount, resolvedRegion = accountID, region
			return &sns.GenerateArnTopicResolver{}, nil
		}
		PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			assert.Empty(t, cfg.OptFns)
			return wantPub, nil
		}
		SubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
			assert.NotNil(t, cfg.GenerateSqsQueueName)
			assert.Empty(t, sqsCfg.OptFns)
			return wantSub, nil
		}

		cfg := &transporttest.Config{AWSRegion: "eu-north-1", AWSAccountID: "123456789012"}
		tr, err := Build(context.Background(), cfg, watermill.NopLogger{})

		require.NoError(t, err)
		assert.Equal(t, wantPub, tr.Publisher)
		assert.Equal(t, wantSub, tr.Subscriber)
		assert.Equal(t, "123456789012", resolvedAccount)
		assert.Equal(t, "eu-north-1", resolvedRegion)
	})

	t.Run("overrides endpoints for localstack", func(t *testing.T) {
		stubFactories(t)

		var resolvedAccount string
		TopicResolverFactory = func(accountID, region string) (*sns.GenerateArnTopicResolver, error) {
			resolvedAccount = accountID
			return &sns.GenerateArnTopicResolver{}, nil
		}
		PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			assert.Len(t, cfg.OptFns, 1)
			return &transporttest.Publisher{}, nil
		}
		SubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
			assert.Len(t, cfg.OptFns, 1)
			assert.Len(t, sqsCfg.OptFns, 1)
			return &transporttest.Subscriber{}, nil
		}

		cfg := &transporttest.Config{AWSRegion: "us-east-1", AWSEndpoint: "http://localhost:4566"}
		_, err := Build(context.Background(), cfg, watermill.NopLogger{})

		require.NoError(t, err)
		assert.Equal(t, localstackAccountID, resolvedAccount)
	})

	t.Run("returns error when config loader fails", func(t *testing.T) {
		stubFactories(t)
		DefaultConfigLoader = func(ctx context.Context, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("config error")
		}

		_, err := Build(context.Background(), &transporttest.Config{AWSRegion: "us-east-1"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "config error")
	})

	t.Run("returns error for malformed endpoint", func(t *testing.T) {
		stubFactories(t)

		_, err := Build(context.Background(), &transporttest.Config{AWSEndpoint: "http://[::1"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "failed to parse AWS endpoint")
	})

	t.Run("returns error when publisher factory fails", func(t *testing.T) {
		stubFactories(t)
		PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("publisher error")
		}

		_, err := Build(context.Background(), &transporttest.Config{AWSAccountID: "123456789012"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "publisher error")
	})

	t.Run("closes publisher when subscriber factory fails", func(t *testing.T) {
		stubFactories(t)
		pub := &transporttest.Publisher{}
		PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return pub, nil
		}
		SubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
			return nil, errors.New("subscriber error")
		}

		_, err := Build(context.Background(), &transporttest.Config{AWSAccountID: "123456789012"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "subscriber error")
		assert.True(t, pub.Closed)
	})
}

func TestResolveAccountID(t *testing.T) {
	logger := watermill.NopLogger{}

	assert.Equal(t, "123456789012", resolveAccountID(`"123456789012"`, false, logger))
	assert.Equal(t, "", resolveAccountID("", false, logger))
	assert.Equal(t, localstackAccountID, resolveAccountID("", true, logger))
	assert.Equal(t, localstackAccountID, resolveAccountID("12345", true, logger))
	assert.Equal(t, "123456789012", resolveAccountID("123456789012", true, logger))
}

func TestEndpointURL(t *testing.T) {
	u, err := endpointURL("")
	assert.NoError(t, err)
	assert.Nil(t, u)

	u, err = endpointURL("http://localhost:4566")
	require.NoError(t, err)
	assert.Equal(t, "localhost:4566", u.Host)
}

func TestQueueNameGenerator(t *testing.T) {
	arn := sns.TopicArn("arn:aws:sns:eu-north-1:123456789012:nuuacs-policy-events")

	name, err := queueNameGenerator("")(context.Background(), arn)
	require.NoError(t, err)
	assert.Equal(t, "nuuacs-policy-events", name)

	name, err = queueNameGenerator("nuuday-acs-instances")(context.Background(), arn)
	require.NoError(t, err)
	assert.Equal(t, "nuuday-acs-instances-nuuacs-policy-events", name)
}

func TestStaticCredentialsProvider(t *testing.T) {
	creds, err := staticCredentialsProvider("key", "secret").Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}

func stubFactories(t *testing.T) {
	t.Helper()
	originalLoader := DefaultConfigLoader
	originalResolver := TopicResolverFactory
	originalPub := PublisherFactory
	originalSub := SubscriberFactory
	t.Cleanup(func() {
		DefaultConfigLoader = originalLoader
		TopicResolverFactory = originalResolver
		PublisherFactory = originalPub
		SubscriberFactory = originalSub
	})

	DefaultConfigLoader = func(ctx context.Context, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{Region: "us-east-1"}, nil
	}
	TopicResolverFactory = func(accountID, region string) (*sns.GenerateArnTopicResolver, error) {
		return &sns.GenerateArnTopicResolver{}, nil
	}
	PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return &transporttest.Publisher{}, nil
	}
	SubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return &transporttest.Subscriber{}, nil
	}
}
