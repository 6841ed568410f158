package storage

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradekit/stratrunner/pkg/models"
)

// mockDynamoDBClient records writes and serves a canned query result.
type mockDynamoDBClient struct {
	dynamodbiface.DynamoDBAPI

	batchInputs []*dynamodb.BatchWriteItemInput
	queryResult *dynamodb.QueryOutput
}

func (m *mockDynamoDBClient) BatchWriteItemWithContext(ctx aws.Context, input *dynamodb.BatchWriteItemInput, opts ...request.Option) (*dynamodb.BatchWriteItemOutput, error) {
	m.batchInputs = append(m.batchInputs, input)
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (m *mockDynamoDBClient) QueryWithContext(ctx aws.Context, input *dynamodb.QueryInput, opts ...request.Option) (*dynamodb.QueryOutput, error) {
	return m.queryResult, nil
}

func TestDynamoDBSaveActionsChunksBatches(t *testing.T) {
	mock := &mockDynamoDBClient{}
	store := NewDynamoDBActionStoreWithClient(mock, "stratrunner_actions")

	actions := make([]models.ActionRecord, 30)
	for i := range actions {
		actions[i] = models.ActionRecord{
			SubscriptionID: "sub-1",
			ActionType:     "execution",
			Status:         "completed",
			CreatedAt:      time.Now().UTC(),
		}
	}

	require.NoError(t, store.SaveActions(context.Background(), actions))

	// 30 records split into a full batch of 25 and a remainder of 5
	require.Len(t, mock.batchInputs, 2)
	assert.Len(t, mock.batchInputs[0].RequestItems["stratrunner_actions"], 25)
	assert.Len(t, mock.batchInputs[1].RequestItems["stratrunner_actions"], 5)

	// Every item carries a generated ActionID
	for _, write := range mock.batchInputs[0].RequestItems["stratrunner_actions"] {
		id := write.PutRequest.Item["ActionID"]
		require.NotNil(t, id)
		assert.NotEmpty(t, aws.StringValue(id.S))
	}
}

func TestDynamoDBListActions(t *testing.T) {
	item, err := dynamodbattribute.MarshalMap(dynamoActionItem{
		SubscriptionID: "sub-1",
		ActionID:       "act-1",
		ActionRecord: models.ActionRecord{
			SubscriptionID: "sub-1",
			ActionType:     "execution",
			Status:         "failed",
			Description:    "Tool invocation failed",
		},
	})
	require.NoError(t, err)

	mock := &mockDynamoDBClient{
		queryResult: &dynamodb.QueryOutput{Items: []map[string]*dynamodb.AttributeValue{item}},
	}
	store := NewDynamoDBActionStoreWithClient(mock, "stratrunner_actions")

	actions, err := store.ListActions(context.Background(), "sub-1")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "failed", actions[0].Status)
	assert.Equal(t, "Tool invocation failed", actions[0].Description)
}
