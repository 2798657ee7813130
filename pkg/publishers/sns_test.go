package publishers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-123")}, nil
}

func TestSNSPublisherSetsSubjectForNotifications(t *testing.T) {
	client := &fakeSNSClient{}
	pub := &snsPublisher{id: "topic", topicARN: "arn:aws:sns:::topic", client: client, log: noopLogger{}}

	title := strings.Repeat("t", 150)
	require.NoError(t, pub.Publish(context.Background(), NewEvent(KindNotification, title, "body", 1)))
	assert.Equal(t, "arn:aws:sns:::topic", aws.ToString(client.input.TopicArn))
	assert.Len(t, aws.ToString(client.input.Subject), 100, "subject is clipped")
	assert.Contains(t, aws.ToString(client.input.Message), `"kind":"notification"`)
}

func TestSNSPublisherFeedUpdatedHasNoSubject(t *testing.T) {
	client := &fakeSNSClient{}
	pub := &snsPublisher{id: "topic", topicARN: "arn", client: client, log: noopLogger{}}

	require.NoError(t, pub.Publish(context.Background(), NewEvent(KindFeedUpdated, "", "", 0)))
	assert.Nil(t, client.input.Subject)
	assert.Equal(t, KindFeedUpdated, aws.ToString(client.input.MessageAttributes["event_kind"].StringValue))
}

func TestSNSPublisherSendError(t *testing.T) {
	pub := &snsPublisher{id: "topic", topicARN: "arn", client: &fakeSNSClient{err: errors.New("boom")}, log: noopLogger{}}
	assert.Error(t, pub.Publish(context.Background(), NewEvent(KindFeedUpdated, "", "", 0)))
}
