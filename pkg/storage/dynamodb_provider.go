package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/google/uuid"

	"github.com/tradekit/stratrunner/pkg/models"
)

// dynamoBatchLimit is the DynamoDB BatchWriteItem per-request cap.
const dynamoBatchLimit = 25

// DynamoDBActionStore implements the ActionStore interface using DynamoDB
type DynamoDBActionStore struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// DynamoDBConfig contains configuration for the DynamoDB action store
type DynamoDBConfig struct {
	Region      string `json:"region"`
	AccessKey   string `json:"access_key"`
	SecretKey   string `json:"secret_key"`
	TablePrefix string `json:"table_prefix"`
	Endpoint    string `json:"endpoint"` // Optional, for local DynamoDB
}

// dynamoActionItem is the table representation of an action record. The
// record itself has no natural unique key, so an id is generated per item.
type dynamoActionItem struct {
	SubscriptionID string `dynamodbav:"SubscriptionID"`
	ActionID       string `dynamodbav:"ActionID"`
	models.ActionRecord
}

// NewDynamoDBActionStore creates a new DynamoDB-backed action store
func NewDynamoDBActionStore(config DynamoDBConfig) (*DynamoDBActionStore, error) {
	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}

	// Set credentials if provided
	if config.AccessKey != "" && config.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		)
	}

	// Set endpoint for local DynamoDB if provided
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &DynamoDBActionStore{
		client:    dynamodb.New(sess),
		tableName: config.TablePrefix + "actions",
	}, nil
}

// NewDynamoDBActionStoreWithClient wraps an existing DynamoDB client. Used
// by tests that substitute a mock.
func NewDynamoDBActionStoreWithClient(client dynamodbiface.DynamoDBAPI, tableName string) *DynamoDBActionStore {
	return &DynamoDBActionStore{client: client, tableName: tableName}
}

// SaveActions persists a batch of action records via BatchWriteItem,
// chunked to the DynamoDB request limit.
func (s *DynamoDBActionStore) SaveActions(ctx context.Context, actions []models.ActionRecord) error {
	for start := 0; start < len(actions); start += dynamoBatchLimit {
		end := start + dynamoBatchLimit
		if end > len(actions) {
			end = len(actions)
		}

		writes := make([]*dynamodb.WriteRequest, 0, end-start)
		for _, action := range actions[start:end] {
			item, err := dynamodbattribute.MarshalMap(dynamoActionItem{
				SubscriptionID: action.SubscriptionID,
				ActionID:       uuid.New().String(),
				ActionRecord:   action,
			})
			if err != nil {
				return fmt.Errorf("failed to marshal action: %w", err)
			}
			writes = append(writes, &dynamodb.WriteRequest{
				PutRequest: &dynamodb.PutRequest{Item: item},
			})
		}

		_, err := s.client.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]*dynamodb.WriteRequest{
				s.tableName: writes,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to batch write actions: %w", err)
		}
	}

	return nil
}

// ListActions returns all persisted actions for a subscription
func (s *DynamoDBActionStore) ListActions(ctx context.Context, subscriptionID string) ([]models.ActionRecord, error) {
	result, err := s.client.QueryWithContext(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("SubscriptionID = :sid"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":sid": {S: aws.String(subscriptionID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}

	actions := make([]models.ActionRecord, 0, len(result.Items))
	for _, item := range result.Items {
		var record dynamoActionItem
		if err := dynamodbattribute.UnmarshalMap(item, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal action: %w", err)
		}
		actions = append(actions, record.ActionRecord)
	}

	return actions, nil
}

// Close cleans up resources
func (s *DynamoDBActionStore) Close() error {
	// The AWS SDK client has no resources to release
	return nil
}
